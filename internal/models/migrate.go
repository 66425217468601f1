package models

import "gorm.io/gorm"

// All returns every model that needs a table, parents first.
func All() []interface{} {
	return []interface{}{
		&User{},
		&SessionLog{},
		&Project{},
		&ClassNode{},
		&RelationshipEdge{},
	}
}

// AutoMigrate creates or updates the tables for All.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}

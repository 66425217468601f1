package main

import (
	"gorm.io/gorm"

	"github.com/uml-studio/engine/internal/models"
)

// runMigrations executes all database migrations
func runMigrations(db *gorm.DB) error {
	if err := models.AutoMigrate(db); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		enableUUIDExtension,
		addProjectListingIndex,
		addDiagramOrderIndexes,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addProjectListingIndex serves the owner listing, newest first.
func addProjectListingIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_projects_user_created
		ON projects(user_id, created_at DESC)
		WHERE deleted_at IS NULL
	`).Error
}

func addDiagramOrderIndexes(db *gorm.DB) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_class_nodes_project_ordinal ON class_nodes(project_id, ordinal)`,
		`CREATE INDEX IF NOT EXISTS idx_relationship_edges_project_ordinal ON relationship_edges(project_id, ordinal)`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// tableNames lists the tables of every migrated model.
func tableNames(db *gorm.DB) []string {
	var names []string
	for _, m := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err == nil {
			names = append(names, stmt.Schema.Table)
		}
	}
	return names
}

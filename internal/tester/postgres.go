package tester

import (
	"context"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/uml-studio/engine/internal/models"
)

// PostgresEnv enables the container-backed tests. They need a Docker daemon.
const PostgresEnv = "UML_POSTGRES_TESTS"

// NewPostgres starts a PostgreSQL container and returns a migrated connection
// to it. t is skipped unless PostgresEnv is set.
func NewPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	if os.Getenv(PostgresEnv) == "" {
		t.Skipf("set %s=1 to run against a PostgreSQL container", PostgresEnv)
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("uml"),
		tcpostgres.WithUsername("uml"),
		tcpostgres.WithPassword("uml"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/uml-studio/engine/internal/tester"
	"github.com/uml-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func openEmpty(t *testing.T) openFunc {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "migrate.db")+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return func(context.Context) (*gorm.DB, error) { return db, nil }
}

func run(open openFunc, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusBeforeAndAfterUp(t *testing.T) {
	open := openEmpty(t)

	out, err := run(open, "status")
	assert.Error(t, err)
	assert.Contains(t, out, "missing")

	out, err = run(open, "up")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations completed")

	out, err = run(open, "status")
	require.NoError(t, err)
	for _, table := range []string{"users", "session_logs", "projects", "class_nodes", "relationship_edges"} {
		assert.Regexp(t, table+`\s+ok`, out)
	}
}

func TestUpIsRepeatable(t *testing.T) {
	open := openEmpty(t)
	for i := 0; i < 2; i++ {
		_, err := run(open, "up")
		require.NoError(t, err)
	}
}

func TestUpOnPostgres(t *testing.T) {
	db := tester.NewPostgres(t)
	open := func(context.Context) (*gorm.DB, error) { return db, nil }

	_, err := run(open, "up")
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Raw(`SELECT count(*) FROM pg_indexes WHERE indexname = 'idx_projects_user_created'`).Scan(&n).Error)
	assert.EqualValues(t, 1, n)
}

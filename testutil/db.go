// Package testutil provides a migrated sqlite database for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vnkhanh/tracer-study/config"
	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/utils"
	"gorm.io/gorm"
)

// DB opens a fresh database file under t.TempDir and migrates it.
func DB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.ConnectDB(config.DBConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// User inserts an account with the given email and password.
func User(t *testing.T, db *gorm.DB, email, password string, admin bool) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Name: email, Email: email, PasswordHash: hash, IsAdmin: admin}
	require.NoError(t, db.Create(u).Error)
	return u
}

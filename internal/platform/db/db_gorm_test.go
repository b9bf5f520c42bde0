package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestOpenerFor はドライバー名に応じたOpenerが返されることを検証します。
func TestOpenerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		driver  string
		wantErr bool
	}{
		{"sqlite", false},
		{"", false},
		{"postgres", false},
		{"PostgreSQL", false},
		{"mysql", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			t.Parallel()

			opener, err := OpenerFor(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, opener)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, opener)
		})
	}
}

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

// TestOpen_SQLiteMigrates はSQLiteファイルを作成しマイグレーションすることを検証します。
func TestOpen_SQLiteMigrates(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err := Open(Config{Driver: "sqlite", DSN: dsn, Migrate: true}, &widget{})
	require.NoError(t, err)

	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	var n int64
	require.NoError(t, db.Model(&widget{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

// TestConnectWithRetry_SuccessOnFirstTry は初回接続成功時にリトライせずDBを返すことを検証します。
func TestConnectWithRetry_SuccessOnFirstTry(t *testing.T) {
	t.Parallel()

	mockDB := &gorm.DB{}
	opener := func(dsn string) (*gorm.DB, error) {
		return mockDB, nil
	}

	db, err := ConnectWithRetry("test-dsn", 5*time.Second, opener)
	require.NoError(t, err)
	assert.Same(t, mockDB, db)
}

// TestConnectWithRetry_RetriesOnFailure は接続失敗時にリトライして最終的に成功することを検証します。
func TestConnectWithRetry_RetriesOnFailure(t *testing.T) {
	// Not parallel because this test takes time due to retry sleeps

	mockDB := &gorm.DB{}
	attemptCount := 0

	opener := func(dsn string) (*gorm.DB, error) {
		attemptCount++
		if attemptCount < 3 {
			return nil, errors.New("connection refused")
		}
		return mockDB, nil
	}

	// Use a timeout that allows for 2 retries (retry interval is 3 seconds)
	db, err := ConnectWithRetry("test-dsn", 10*time.Second, opener)
	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 3, attemptCount)
}

// TestConnectWithRetry_TimeoutAfterRetries はタイムアウト後にエラーが返されることを検証します。
func TestConnectWithRetry_TimeoutAfterRetries(t *testing.T) {
	t.Parallel()

	attemptCount := 0
	errRefused := errors.New("connection refused")
	opener := func(dsn string) (*gorm.DB, error) {
		attemptCount++
		return nil, errRefused
	}

	// Very short timeout - should fail after the first attempt
	_, err := ConnectWithRetry("test-dsn", 100*time.Millisecond, opener)
	require.Error(t, err)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, attemptCount)
}

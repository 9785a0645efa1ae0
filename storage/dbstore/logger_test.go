package dbstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"starmap/logging"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{}) })
	return &buf
}

func TestLoggerFailedQueryIsError(t *testing.T) {
	db := newTestDB(t)
	buf := captureLogs(t)

	require.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), "no_such_table")
}

func TestLoggerSQLTrace(t *testing.T) {
	db := newTestDB(t)
	buf := captureLogs(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.Zero(t, buf.Len())

	traced := db.Session(&gorm.Session{Logger: NewLogger(true)})
	require.NoError(t, traced.Exec("SELECT 1").Error)
	require.Contains(t, buf.String(), `"level":"info"`)
	require.Contains(t, buf.String(), `"sql":"SELECT 1"`)
}

func TestLoggerSlowQueryIsWarn(t *testing.T) {
	buf := captureLogs(t)

	l := NewLogger(false)
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT sleep", 1
	}, nil)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "SELECT sleep")
}

func TestLoggerSilentAndNotFound(t *testing.T) {
	buf := captureLogs(t)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT x", 0 }

	NewLogger(true).Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	require.NotContains(t, buf.String(), `"level":"error"`)

	buf.Reset()
	NewLogger(false).LogMode(logger.Silent).Trace(ctx, time.Now(), sql, context.Canceled)
	require.Zero(t, buf.Len())
}

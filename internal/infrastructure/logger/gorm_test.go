package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(50*time.Millisecond))
	ctx, _ := WithJobID(context.Background(), zap.NewNop(), "job-7")

	gl.Trace(ctx, time.Now(), sqlFn("SELECT * FROM sync_jobs WHERE id = 'x'"), nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), sqlFn("SELECT 1"), nil)
	gl.Trace(ctx, time.Now(), sqlFn("UPDATE product_mappings"), errors.New("deadlock"))
	gl.Trace(ctx, time.Now(), sqlFn("SELECT missing"), gormlogger.ErrRecordNotFound)

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, "SQL Query", all[0].Message)
	assert.Equal(t, "SELECT * FROM sync_jobs WHERE id = ...", all[0].ContextMap()["sql"])
	assert.Equal(t, "job-7", all[0].ContextMap()["job_id"])
	assert.Contains(t, all[1].Message, "SLOW SQL")
	assert.Equal(t, "SQL Error", all[2].Message)
}

func TestGormLogger_FullSQLAndSilent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, WithFullSQL(true))

	gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 'a'"), nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "SELECT 'a'", logs.All()[0].ContextMap()["sql"])

	gl.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sqlFn("SELECT 2"), nil)
	assert.Equal(t, 1, logs.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}

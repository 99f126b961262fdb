package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{`SELECT * FROM "payments" WHERE merchant_id = $1`, "SELECT", "payments"},
		{"INSERT INTO `payment_events` (`id`) VALUES (?)", "INSERT", "payment_events"},
		{`UPDATE merchants SET is_active = $1`, "UPDATE", "merchants"},
		{`WITH x AS (SELECT 1) DELETE FROM payment_events`, "SELECT", "payment_events"},
		{`PRAGMA foreign_keys`, "UNKNOWN", "unknown"},
	}
	for _, tc := range cases {
		op, table := describeSQL(tc.sql)
		if op != tc.op || table != tc.table {
			t.Fatalf("describeSQL(%q) = %s %s, want %s %s", tc.sql, op, table, tc.op, tc.table)
		}
	}
}

func TestTraceLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())
	sql := func() (string, int64) { return `INSERT INTO "payments" ("id") VALUES ($1)`, 0 }
	begin := time.Now()

	l.Trace(context.Background(), begin, sql, gorm.ErrDuplicatedKey)
	l.Trace(context.Background(), begin, sql, errors.New("connection reset"))
	l.Trace(context.Background(), begin, sql, gormlogger.ErrRecordNotFound)
	l.Trace(context.Background(), begin, sql, nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected duplicate and failure entries only, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected levels %s %s", entries[0].Level, entries[1].Level)
	}
	if entries[0].ContextMap()["table"] != "payments" {
		t.Fatalf("table field missing: %v", entries[0].ContextMap())
	}
}

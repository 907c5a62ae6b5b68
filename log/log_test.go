package log

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testangel/testangel-sdk/domain/entities"
)

type record struct {
	message string
	level   entities.LogLevel
}

type recorder struct {
	records []record
}

func (r *recorder) emit(level entities.LogLevel, message string) {
	r.records = append(r.records, record{level: level, message: message})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{name: "string", attr: slog.String("key", "value"), want: "value"},
		{name: "string with space", attr: slog.String("key", "two words"), want: `"two words"`},
		{name: "empty string", attr: slog.String("key", ""), want: `""`},
		{name: "int64", attr: slog.Int64("key", 123), want: "123"},
		{name: "uint64", attr: slog.Uint64("key", 7), want: "7"},
		{name: "bool", attr: slog.Bool("key", true), want: "true"},
		{name: "float64", attr: slog.Float64("key", 1.23), want: "1.23"},
		{name: "time", attr: slog.Time("key", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), want: "2024-01-01T00:00:00Z"},
		{name: "duration", attr: slog.Duration("key", time.Hour), want: "1h0m0s"},
		{name: "error", attr: slog.Any("key", errors.New("test error")), want: `"test error"`},
		{name: "nil", attr: slog.Any("key", nil), want: "<nil>"},
		{name: "stringer", attr: slog.Any("key", entities.KindInteger), want: "INTEGER"},
		{name: "json", attr: slog.Any("key", map[string]int{"a": 1}), want: `{"a":1}`},
		{name: "log valuer", attr: slog.Any("key", logValuer{val: "resolved"}), want: "resolved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.attr.Value.Resolve()))
		})
	}
}

type logValuer struct {
	val string
}

func (l logValuer) LogValue() slog.Value {
	return slog.StringValue(l.val)
}

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler(func(entities.LogLevel, string) {})
	assert.NotNil(t, h)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewHandler_Options(t *testing.T) {
	h := NewHandler(func(entities.LogLevel, string) {}, WithLevel(entities.LevelTrace), WithSource(true))
	assert.True(t, h.Enabled(context.TODO(), entities.LevelTrace))
}

func TestNewHandler_NilEmitterIsDisabled(t *testing.T) {
	h := NewHandler(nil, WithLevel(entities.LevelTrace))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelError))
	assert.NoError(t, h.Handle(context.TODO(), slog.NewRecord(time.Now(), slog.LevelError, "dropped", 0)))
}

func TestHandler_Levels(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewHandler(rec.emit, WithLevel(entities.LevelTrace)))

	logger.Log(context.TODO(), entities.LevelTrace, "t")
	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	require.Len(t, rec.records, 5)
	assert.Equal(t, []record{
		{level: entities.LogTrace, message: "t"},
		{level: entities.LogDebug, message: "d"},
		{level: entities.LogInfo, message: "i"},
		{level: entities.LogWarn, message: "w"},
		{level: entities.LogError, message: "e"},
	}, rec.records)
}

func TestHandler_Attributes(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewHandler(rec.emit)).
		With("instruction", "demo-add").
		WithGroup("params").
		With("a", 2)

	logger.Info("executing", "b", 3, slog.Group("extra", "dry_run", false))

	require.Len(t, rec.records, 1)
	assert.Equal(t, "executing instruction=demo-add params.a=2 params.b=3 params.extra.dry_run=false", rec.records[0].message)
}

func TestHandler_FiltersBelowLevel(t *testing.T) {
	rec := &recorder{}
	logger := slog.New(NewHandler(rec.emit, WithLevel(slog.LevelWarn)))

	logger.Info("hidden")
	logger.Warn("shown")

	require.Len(t, rec.records, 1)
	assert.Equal(t, "shown", rec.records[0].message)
}

func TestHandler_DynamicLevel(t *testing.T) {
	rec := &recorder{}
	var level slog.LevelVar
	level.Set(slog.LevelError)
	logger := slog.New(NewHandler(rec.emit, WithLevel(&level)))

	logger.Info("hidden")
	level.Set(slog.LevelInfo)
	logger.Info("shown")

	require.Len(t, rec.records, 1)
	assert.Equal(t, "shown", rec.records[0].message)
}

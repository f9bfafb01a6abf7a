package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLogger_ComponentField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})

	logger.Info("Transaction recorded", FieldTransactionID, 7)
	rec := decodeLine(t, &buf)
	assert.Equal(t, "ledger", rec[FieldComponent])
	assert.EqualValues(t, 7, rec[FieldTransactionID])

	buf.Reset()
	logger.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below the configured level")

	buf.Reset()
	logger.WithComponent(ComponentPublish).Warn("Publish failed")
	assert.Equal(t, "publish", decodeLine(t, &buf)[FieldComponent])
}

func TestFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentLedger).
		WithOperation(OpCreate).
		WithTransaction(0, "Acme", "incoming", "1500.00").
		WithError(nil)

	assert.Equal(t, "Acme", f[FieldCounterparty])
	assert.NotContains(t, f, FieldTransactionID)
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), len(f)*2)

	f.WithError(errors.New("boom"))
	assert.Equal(t, "boom", f[FieldError])
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	h := Middleware(logger, func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := decodeLine(t, &buf)
	assert.Equal(t, "req_1", rec[FieldRequestID])
	assert.Equal(t, "http", rec[FieldComponent])
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, ComponentApp, l.Component())
}

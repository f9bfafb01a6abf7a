package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeTriggers(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	require.NotEmpty(t, raw, "HX-Trigger header not set")
	var triggers map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &triggers))
	return triggers
}

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		BodyHTML(SuccessFragment("saved")).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, `<div class="success">saved</div>`, w.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("HX-Trigger"))
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerLedgerChanged("transaction_added").
		TriggerPeopleChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Transaction recorded").
		Write(w)

	triggers := decodeTriggers(t, w)
	assert.Contains(t, triggers, "ledger:changed")
	assert.Contains(t, triggers, "people:changed")
	assert.Contains(t, triggers, "form:reset")
	assert.JSONEq(t, `{"reason":"transaction_added"}`, string(triggers["ledger:changed"]))
	assert.JSONEq(t, `{"type":"success","message":"Transaction recorded","duration":3000}`,
		string(triggers["show-notification"]))
}

func TestHTMXResponseBuilder_Warnings(t *testing.T) {
	tests := []struct {
		name     string
		warnings []string
		want     string
	}{
		{name: "no warnings adds nothing"},
		{name: "first warning is shown", warnings: []string{"publish s3: timeout", "publish gcs: denied"}, want: "publish s3: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHTMXResponse().TriggerWarnings(tt.warnings).Write(w)

			if tt.want == "" {
				assert.Empty(t, w.Header().Get("HX-Trigger"))
				return
			}
			triggers := decodeTriggers(t, w)
			var n map[string]any
			require.NoError(t, json.Unmarshal(triggers["show-notification"], &n))
			assert.Equal(t, "warning", n["type"])
			assert.Equal(t, tt.want, n["message"])
		})
	}
}

func TestHTMXResponseBuilder_BodyJSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().BodyJSON(map[string]int{"count": 2}).Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
}

func TestHTMXResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().Header("X-Custom", "value").Write(w)

	assert.Equal(t, "value", w.Header().Get("X-Custom"))
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *HTMXResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest},
		{"unprocessable", UnprocessableEntityError("bad"), http.StatusUnprocessableEntity},
		{"conflict", ConflictError("bad"), http.StatusConflict},
		{"not found", NotFoundError("bad"), http.StatusNotFound},
		{"internal", InternalServerError("bad"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, `<div class="error">bad</div>`, w.Body.String())
		})
	}
}

func TestErrorResponse_EscapesMessage(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorResponse(http.StatusUnprocessableEntity, `<script>alert("x")</script>`).Write(w)

	assert.NotContains(t, w.Body.String(), "<script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

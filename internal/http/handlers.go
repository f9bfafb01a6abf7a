package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"paytrack/internal/core"
	"paytrack/internal/log"
	"paytrack/internal/services"
)

// wantsHTML reports whether the caller is the HTMX page rather than a script.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", core.ErrValidation)
	}
	return id, nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, core.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorTypeFor(status int) string {
	switch status {
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return log.ErrorTypeValidation
	default:
		return log.ErrorTypeInternal
	}
}

// writeError answers with an error fragment or JSON body. User errors carry
// their message; anything else is logged and hidden.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, operation, log.ErrorTypeInternal,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		msg = "Internal error, please try again"
	} else {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Request rejected",
			log.FieldOperation, operation,
			log.FieldErrorType, errorTypeFor(status),
			log.FieldError, err)
	}
	s.writeErrorMessage(w, r, status, msg)
}

func (s *Server) writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsHTML(r) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	NewHTMXResponse().Status(status).BodyJSON(map[string]string{"error": msg}).Write(w)
}

// writeMutation answers a committed mutation. Warnings are downstream
// failures; the write itself succeeded.
func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, status int, reason, message string, res services.MutationResult) {
	if !wantsHTML(r) {
		NewHTMXResponse().Status(status).BodyJSON(mutationJSON{
			ID:       res.ID,
			Reason:   reason,
			Warnings: nonNil(res.Warnings),
		}).Write(w)
		return
	}

	b := NewHTMXResponse().
		Status(status).
		TriggerLedgerChanged(reason).
		BodyHTML(SuccessFragment(message))
	if len(res.Warnings) > 0 {
		b.TriggerWarnings(res.Warnings)
	} else {
		b.TriggerSuccessNotification(message)
	}
	switch reason {
	case services.ReasonPersonAdded, services.ReasonPersonDeleted:
		b.TriggerPeopleChanged()
	case services.ReasonTransactionAdded, services.ReasonClientExpenseAdded:
		b.TriggerFormReset()
	}
	b.Write(w)
}

// render executes a named template into a buffer so a failure never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.LogError(r.Context(), "Templates not loaded", errors.New("no templates"),
			log.ComponentHTTP, log.OpRender, log.ErrorTypeConfiguration, nil)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.LogError(r.Context(), "Template execution failed", err,
			log.ComponentHTTP, log.OpRender, log.ErrorTypeInternal,
			log.Fields{"template": name})
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

// parseBody reads a JSON or form-encoded request body.
func (s *Server) parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("%w: malformed request body", core.ErrValidation)
	}
	return p, nil
}

func (s *Server) validateForm(form any) error {
	if err := s.validate.Struct(form); err != nil {
		return fmt.Errorf("%w: %s", core.ErrValidation, validationMessage(err))
	}
	return nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

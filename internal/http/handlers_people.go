package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"paytrack/internal/core"
	"paytrack/internal/log"
	"paytrack/internal/services"
)

// handlePeople lists counterparties. With ?direction= (or the form's ?type=)
// the list is narrowed to the names offered for that direction; HTMX callers
// get <option> elements.
func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	direction := strings.ToLower(strings.TrimSpace(q.Get("direction")))
	if direction == "" {
		direction = strings.ToLower(strings.TrimSpace(q.Get("type")))
	}
	if direction != "" {
		if !core.Direction(direction).IsValid() {
			s.writeError(w, r, core.ErrInvalidDirection, log.OpList)
			return
		}
		names, err := s.ledger.Counterparties(r.Context(), core.Direction(direction))
		if err != nil {
			s.writeError(w, r, err, log.OpList)
			return
		}
		if wantsHTML(r) {
			NewHTMXResponse().BodyHTML(optionsHTML(names)).Write(w)
			return
		}
		NewHTMXResponse().BodyJSON(nonNil(names)).Write(w)
		return
	}

	people, err := s.ledger.People(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpList)
		return
	}
	out := make([]personJSON, 0, len(people))
	for _, p := range people {
		out = append(out, personJSON{Name: p.Name, Category: p.Category})
	}
	NewHTMXResponse().BodyJSON(out).Write(w)
}

func optionsHTML(names []string) string {
	var b strings.Builder
	b.WriteString(`<option value="">Select counterparty</option>`)
	for _, n := range names {
		esc := template.HTMLEscapeString(n)
		fmt.Fprintf(&b, `<option value="%s">%s</option>`, esc, esc)
	}
	return b.String()
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(r)
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	form := PersonForm{Name: p.Get("name"), Category: strings.ToLower(p.Get("category"))}
	if err := s.validateForm(form); err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}

	res, err := s.ledger.AddPerson(r.Context(), core.Person{Name: form.Name, Category: form.Category})
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Person added",
		log.FieldOperation, log.OpCreate, log.FieldCounterparty, form.Name)
	s.writeMutation(w, r, http.StatusCreated, services.ReasonPersonAdded, "Person added", res)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	name, err := personParam(r)
	if err != nil || strings.TrimSpace(name) == "" {
		s.writeError(w, r, core.ErrEmptyName, log.OpDelete)
		return
	}

	res, err := s.ledger.DeletePerson(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Person deleted",
		log.FieldOperation, log.OpDelete, log.FieldCounterparty, name)
	s.writeMutation(w, r, http.StatusOK, services.ReasonPersonDeleted, "Person deleted", res)
}

// personParam returns the decoded {name} segment. chi routes on RawPath when
// the request carried escapes, leaving the parameter still encoded.
func personParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

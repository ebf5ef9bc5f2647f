package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/pharmadist/internal/core"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListTables())
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseListParam splits a comma-separated query parameter, dropping blanks.
func parseListParam(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// handleSearch serves live search. Clients typing into a search box send
// X-Search-Session so a new keystroke cancels the previous lookup.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	session := r.Header.Get("X-Search-Session")
	if session == "" {
		session = r.URL.Query().Get("session")
	}

	result, err := s.service.Search(r.Context(), core.SearchRequest{
		Table:   chi.URLParam(r, "table"),
		Query:   r.URL.Query().Get("q"),
		Fields:  parseListParam(r, "fields"),
		Limit:   parseIntParam(r, "limit", 0),
		Session: session,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.List(r.Context(), core.ListRequest{
		Table:   chi.URLParam(r, "table"),
		OrderBy: r.URL.Query().Get("order"),
		Desc:    r.URL.Query().Get("desc") == "true",
		Limit:   parseIntParam(r, "limit", 0),
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	rec, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "table"), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteRecord(r.Context(), chi.URLParam(r, "table"), id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	var p core.Party
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	p.ID = 0

	created, err := s.service.CreateParty(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var draft core.InvoiceDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	inv, err := s.service.CreateInvoice(r.Context(), draft)
	if err != nil {
		// The invoice is stored before stock moves; report it with the error.
		if inv.ID != 0 {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, inv)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	inv, err := s.service.GetInvoice(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, inv)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	profile, err := s.service.Company(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

func (s *Server) handlePutCompany(w http.ResponseWriter, r *http.Request) {
	var profile core.CompanyProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := s.service.SaveCompany(r.Context(), profile); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleReset wipes products, parties and invoices.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "reset"})
}

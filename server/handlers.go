package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"factharvest/export"
	"factharvest/record"
	"factharvest/snapshot"
)

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshots", s.handleSnapshots)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/report", s.handleReport)
		r.Get("/countries", s.handleCountries)
		r.Get("/countries/{countryID}", s.handleCountry)
		r.Get("/history/snapshots", s.handleHistorySnapshots)
		r.Get("/history/diff", s.handleHistoryDiff)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response not encoded", "error", err)
	}
}

// httpError maps not-found style failures to 404 and everything else
// to 500, except the explicit cases handlers map themselves.
func (s *Server) httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoSnapshots), errors.Is(err, os.ErrNotExist),
		errors.Is(err, record.ErrNoRecords):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Error("request failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, _ *http.Request) {
	dates, err := snapshot.List(s.cfg.Paths.DataDir)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": dates})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	layout, err := s.resolveLayout(r.URL.Query().Get("date"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	cat, err := s.readCatalog(layout)
	if err != nil {
		s.httpError(w, err)
		return
	}
	if band := r.URL.Query().Get("band"); band != "" {
		cat.Fields = filterBand(cat.Fields, band)
	}
	s.writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	layout, err := s.resolveLayout(r.URL.Query().Get("date"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	report, err := s.readReport(layout)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// countrySummary is the list-view projection of a record.
type countrySummary struct {
	CountryID string `json:"country_id"`
	Name      string `json:"name"`
	Region    string `json:"region,omitempty"`
	Fields    int    `json:"fields"`
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	layout, err := s.resolveLayout(r.URL.Query().Get("date"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	records, _, err := s.refinedStore(layout).LoadAll()
	if err != nil {
		s.httpError(w, err)
		return
	}
	summaries := make([]countrySummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, countrySummary{
			CountryID: rec.CountryID,
			Name:      rec.Name,
			Region:    rec.Region,
			Fields:    len(rec.Fields),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_date": layout.Date,
		"countries":     summaries,
	})
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	layout, err := s.resolveLayout(r.URL.Query().Get("date"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	rec, err := s.refinedStore(layout).Load(chi.URLParam(r, "countryID"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(export.NewMarkdownRenderer().Country(rec)))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistorySnapshots(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history tracking is not enabled", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.history.Snapshots(r.Context())
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshots": rows})
}

func (s *Server) handleHistoryDiff(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history tracking is not enabled", http.StatusServiceUnavailable)
		return
	}
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to dates are required", http.StatusBadRequest)
		return
	}
	diff, err := s.history.CompareSnapshots(r.Context(), from, to)
	if err != nil {
		s.httpError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, diff)
}

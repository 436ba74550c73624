package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/atlas-cli/internal/model"
	"github.com/sells-group/atlas-cli/pkg/geocode"
)

type resolveRequest struct {
	Sites         []model.SiteQuery `json:"sites"`
	ForceRefresh  bool              `json:"force_refresh"`
	ParallelLimit int               `json:"parallel_limit"`
}

type resolveResponse struct {
	Results    []model.ResolvedSite `json:"results"`
	Resolved   int                  `json:"resolved"`
	Unresolved int                  `json:"unresolved"`
}

type seedRequest struct {
	Site           model.SiteQuery `json:"site"`
	Lat            float64         `json:"lat"`
	Lng            float64         `json:"lng"`
	Confidence     float64         `json:"confidence"`
	PlaceID        string          `json:"place_id"`
	ProvenanceURLs []string        `json:"provenance_urls"`
}

type seedResponse struct {
	Key    string `json:"key"`
	SiteID string `json:"site_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Sites) == 0 {
		writeError(w, http.StatusBadRequest, "sites must not be empty")
		return
	}

	results := s.coord.ResolveAll(r.Context(), req.Sites, geocode.BatchOptions{
		ForceRefresh:  req.ForceRefresh,
		ParallelLimit: req.ParallelLimit,
	})

	resp := resolveResponse{Results: results}
	for _, res := range results {
		if res.Resolved() {
			resp.Resolved++
		} else {
			resp.Unresolved++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := geocode.Seed(r.Context(), s.store, req.Site, req.Lat, req.Lng, geocode.SeedOptions{
		Confidence:     req.Confidence,
		PlaceID:        req.PlaceID,
		ProvenanceURLs: req.ProvenanceURLs,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seedResponse{Key: key, SiteID: req.Site.ID})
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Debug(r.Context()))
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.log.Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

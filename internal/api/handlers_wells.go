package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lox/drillboard/internal/models"
)

func (s *Server) handleWells(w http.ResponseWriter, r *http.Request) {
	wells, err := s.store.ListWells()
	if err != nil {
		log.Printf("api: list wells: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch wells")
		return
	}

	views := make([]WellView, 0, len(wells))
	for _, well := range wells {
		has, err := s.datasets.Contains(r.Context(), well.ID)
		if err != nil {
			log.Printf("api: contains %s: %v", well.ID, err)
		}
		views = append(views, WellView{Well: well, HasData: has})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleWell(w http.ResponseWriter, r *http.Request) {
	well, ok := s.lookupWell(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, well)
}

func (s *Server) handleWellData(w http.ResponseWriter, r *http.Request) {
	well, ok := s.lookupWell(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, ok := s.loadDataset(w, r, well.ID)
	if !ok {
		return
	}
	total := len(records)
	if limit > 0 && limit < total {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, WellData{WellID: well.ID, TotalRecords: total, Data: records})
}

func (s *Server) handleWellSummary(w http.ResponseWriter, r *http.Request) {
	well, ok := s.lookupWell(w, r)
	if !ok {
		return
	}
	records, ok := s.loadDataset(w, r, well.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summarize(well.ID, records))
}

func (s *Server) handleWellChart(w http.ResponseWriter, r *http.Request) {
	well, ok := s.lookupWell(w, r)
	if !ok {
		return
	}
	records, ok := s.loadDataset(w, r, well.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, buildChart(well.ID, records))
}

// lookupWell resolves {id} or writes the error response.
func (s *Server) lookupWell(w http.ResponseWriter, r *http.Request) (*models.Well, bool) {
	id := chi.URLParam(r, "id")
	well, err := s.store.GetWell(id)
	if err != nil {
		log.Printf("api: get well %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch well")
		return nil, false
	}
	if well == nil {
		writeError(w, http.StatusNotFound, "Well not found")
		return nil, false
	}
	return well, true
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request, wellID string) ([]models.Record, bool) {
	records, err := s.datasets.Get(r.Context(), wellID)
	if err != nil {
		log.Printf("api: get dataset %s: %v", wellID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch data")
		return nil, false
	}
	return records, true
}

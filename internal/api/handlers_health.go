package api

import (
	"net/http"
	"time"

	"github.com/lox/drillboard/internal/config"
)

type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Features  HealthFeatures `json:"features"`
}

type HealthFeatures struct {
	AWS    bool   `json:"aws"`
	OpenAI bool   `json:"openai"`
	Store  string `json:"store"`
	Chat   string `json:"chat"`
	Mode   string `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Features: HealthFeatures{
			AWS:    s.backend == config.BackendS3,
			OpenAI: s.cfg.HasOpenAI(),
			Store:  s.backend,
			Chat:   s.assistant.Name(),
			Mode:   s.cfg.Env,
		},
	})
}

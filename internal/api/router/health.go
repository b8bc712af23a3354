package router

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jdavido74/medical-pro/internal/http/respond"
)

// Check probes one dependency. Postgres and Redis pings fit this shape.
type Check func(ctx context.Context) error

type healthResponse struct {
	Status       string            `json:"status"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// healthHandler answers GET /health. Any failing check turns the response
// into 503 so load balancers drain the instance.
func healthHandler(env string, checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Env: env}
		if len(names) > 0 {
			resp.Dependencies = make(map[string]string, len(names))
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Dependencies[name] = "down"
				resp.Status = "degraded"
				continue
			}
			resp.Dependencies[name] = "ok"
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(w, status, resp)
	}
}

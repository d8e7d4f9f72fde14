package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/fastmart-backend/api/responses"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names one dependency pinged by /health.
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

func Root() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"message": "Welcome to the FastMart API"})
	}
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FastMart-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// Health pings every dependency and reports healthy only when all respond.
// An unhealthy report is served with 503 so load balancers can act on it.
func Health(cfg *config.Config, logg *logger.Logger, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FastMart-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "healthy", Dependencies: map[string]string{}}
		var errs error
		for _, check := range checks {
			if check.Pinger == nil {
				resp.Dependencies[check.Name] = "disabled"
				continue
			}
			if err := check.Pinger.Ping(ctx); err != nil {
				errs = multierr.Append(errs, err)
				resp.Dependencies[check.Name] = "unreachable"
				continue
			}
			resp.Dependencies[check.Name] = "connected"
		}

		if errs != nil {
			resp.Status = "unhealthy"
			if logg != nil {
				logg.WarnErr(r.Context(), "health.unhealthy", errs)
			}
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, resp)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

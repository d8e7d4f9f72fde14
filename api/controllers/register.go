package controllers

import (
	"net/http"

	"github.com/angelmondragon/fastmart-backend/api/responses"
	"github.com/angelmondragon/fastmart-backend/api/validators"
	"github.com/angelmondragon/fastmart-backend/internal/auth"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
)

// AuthRegister creates a shopper account and returns it without a token.
func AuthRegister(reg auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reg == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("auth"))
			return
		}

		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := reg.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

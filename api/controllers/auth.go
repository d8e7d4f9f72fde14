package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/fastmart-backend/api/responses"
	"github.com/angelmondragon/fastmart-backend/api/validators"
	"github.com/angelmondragon/fastmart-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
)

// AuthLogin wires the JSON login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("auth"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type tokenForm struct {
	Username string `validate:"required,email"`
	Password string `validate:"required"`
}

// AuthToken accepts OAuth2 password-form credentials (username/password).
func AuthToken(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("auth"))
			return
		}

		if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/x-www-form-urlencoded") {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeSchema, "form encoded body required"))
			return
		}
		if err := r.ParseForm(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeSchema, err, "invalid form body"))
			return
		}

		form := tokenForm{
			Username: strings.TrimSpace(r.PostForm.Get("username")),
			Password: r.PostForm.Get("password"),
		}
		if err := validators.ValidateStruct(&form); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), auth.LoginRequest{Email: form.Username, Password: form.Password})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AuthMe returns the authenticated user.
func AuthMe(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("auth"))
			return
		}

		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Me(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

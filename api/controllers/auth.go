package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/api/validators"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// jsonAction decodes and validates a Req body, calls fn and renders the
// result with the given status and message.
func jsonAction[Req, Res any](logg *logger.Logger, status int, message string, fn func(context.Context, Req) (Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := fn(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, status, res, message)
	}
}

func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusCreated, "User registered successfully", func(ctx context.Context, req auth.RegisterRequest) (*auth.Result, error) {
		res, err := svc.Register(ctx, req)
		if err == nil {
			logg.Info(logg.WithUserID(ctx, res.User.ID.String()), "auth.registered")
		}
		return res, err
	})
}

func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, "Login successful", svc.Login)
}

func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, "", func(ctx context.Context, req auth.RefreshRequest) (*auth.Result, error) {
		return svc.Refresh(ctx, req.RefreshToken)
	})
}

// AuthLogout revokes the session behind the presented access token. Other
// sessions of the same user stay valid.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if err := svc.Logout(r.Context(), p.AccessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, nil, "Logged out")
	}
}

// AuthForgotPassword answers the same way whether or not the email belongs
// to an account.
func AuthForgotPassword(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusAccepted, "If the account exists, a reset code has been sent", func(ctx context.Context, req auth.ForgotPasswordRequest) (any, error) {
		return nil, svc.ForgotPassword(ctx, req)
	})
}

func AuthResetPassword(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return jsonAction(logg, http.StatusOK, "Password has been reset", func(ctx context.Context, req auth.ResetPasswordRequest) (any, error) {
		return nil, svc.ResetPassword(ctx, req)
	})
}

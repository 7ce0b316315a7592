package handler

import (
	"net/http"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"go.uber.org/zap"
)

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type meResponse struct {
	User        *domain.User       `json:"user"`
	AccountType domain.AccountType `json:"account_type"`
}

// authMeHandler returns the token's user and the account type its role maps to.
func authMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		writeJSON(w, http.StatusOK, meResponse{User: user, AccountType: service.Classify(user.Role)})
	}
}

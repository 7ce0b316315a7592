package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"
	"github.com/boddenberg/dukaverse-accounts-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const (
	userKey    contextKey = "user"
	accountKey contextKey = "account"
)

// JWTAuthMiddleware validates Bearer tokens and injects the user into context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			user, err := authSvc.CurrentUser(r.Context(), claims)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountMiddleware resolves the request-scoped Account for the
// authenticated user. Resolution never fails the request; handlers decide
// what an unbound account means for them.
func AccountMiddleware(accountSvc *service.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			account := accountSvc.Resolve(r.Context(), user)
			ctx := context.WithValue(r.Context(), accountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccount rejects requests whose account has no bound tenant.
func RequireAccount(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := AccountFromContext(r.Context())
			if account == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !account.Bound() {
				err := account.Err()
				if err == nil {
					err = &domain.ErrNoSession{UserID: account.User().ID}
				}
				var noCandidates *domain.ErrNoCandidates
				if errors.As(err, &noCandidates) {
					err = &domain.ErrForbidden{Action: noCandidates.Error()}
				}
				handleServiceError(w, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	v, _ := ctx.Value(userKey).(*domain.User)
	return v
}

// AccountFromContext returns the resolved account, or nil.
func AccountFromContext(ctx context.Context) *service.Account {
	v, _ := ctx.Value(accountKey).(*service.Account)
	return v
}

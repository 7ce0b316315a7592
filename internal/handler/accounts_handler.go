package handler

import (
	"net/http"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		account := AccountFromContext(ctx)
		list, err := account.AccountList(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func setAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/session")
		defer span.End()

		var req domain.SetAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		account := AccountFromContext(ctx)
		if req.AccountType == "" {
			req.AccountType = account.Type()
		}
		if _, err := account.SetAccount(ctx, req.AccountType, req.AccountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		cur, err := account.Current(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	}
}

func currentAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/current")
		defer span.End()

		cur, err := AccountFromContext(ctx).Current(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cur)
	}
}

func permissionsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/permissions")
		defer span.End()

		account := AccountFromContext(ctx)
		perms, err := account.Permissions(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"admin":       account.AdminAccount(),
			"permissions": perms,
		})
	}
}

func membersHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/members")
		defer span.End()

		members, err := AccountFromContext(ctx).Members(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"members": members,
			"total":   len(members),
		})
	}
}

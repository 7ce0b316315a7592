package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Session accounts (implements port.SessionStore)
//
// session_accounts.user_id is unique; writes upsert on it so a user never
// holds more than one row.
// ============================================================

func (c *Client) GetSessionAccount(ctx context.Context, userID string) (*domain.SessionAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSessionAccount")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []domain.SessionAccount
	path := fmt.Sprintf("session_accounts?user_id=%s&limit=1", eq(userID))
	if err := c.get(ctx, "session_accounts", path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) ReplaceSessionAccount(ctx context.Context, session *domain.SessionAccount) (*domain.SessionAccount, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceSessionAccount")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", session.UserID),
		attribute.String("tenant.id", session.SessionableID),
	)

	row := map[string]any{
		"user_id":          session.UserID,
		"sessionable_type": session.SessionableType,
		"sessionable_id":   session.SessionableID,
		"token":            session.Token,
		"last_used_at":     session.LastUsedAt,
		"expires_at":       session.ExpiresAt,
	}

	var saved []domain.SessionAccount
	err := c.write("session_accounts", func() error {
		body, err := c.doPost(ctx, "session_accounts?on_conflict=user_id", row,
			"resolution=merge-duplicates,return=representation")
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &saved)
	})
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("session account upsert for user %s returned no rows", session.UserID)
	}

	c.logger.Info("supabase: session account replaced",
		zap.String("user_id", saved[0].UserID),
		zap.String("sessionable_type", string(saved[0].SessionableType)),
		zap.String("sessionable_id", saved[0].SessionableID),
	)
	return &saved[0], nil
}

func (c *Client) TouchSessionAccount(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.TouchSessionAccount")
	defer span.End()

	return c.write("session_accounts", func() error {
		return c.doPatch(ctx, fmt.Sprintf("session_accounts?user_id=%s", eq(userID)), map[string]any{
			"last_used_at": time.Now().UTC(),
		})
	})
}

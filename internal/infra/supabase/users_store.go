package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Users (implements port.UserDirectory)
// ============================================================

const userColumns = "id,name,email,role,created_at"

type userRow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         domain.Role(r.Role),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
	}
}

func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var rows []userRow
	path := fmt.Sprintf("users?select=%s&id=%s&limit=1", userColumns, eq(userID))
	if err := c.get(ctx, "users", path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	u := rows[0].toDomain()
	return &u, nil
}

// GetUserByEmail returns (nil, nil) when no user has email. It is the only
// read that selects password_hash.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	var rows []userRow
	path := fmt.Sprintf("users?select=%s,password_hash&email=%s&limit=1", userColumns, eq(strings.ToLower(email)))
	if err := c.get(ctx, "users", path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	u := rows[0].toDomain()
	return &u, nil
}

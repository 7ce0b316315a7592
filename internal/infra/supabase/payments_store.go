package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.uber.org/zap"
)

// RecordPayment inserts a ledger row (implements port.PaymentLedger).
func (c *Client) RecordPayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RecordPayment")
	defer span.End()

	row := map[string]any{
		"gateway":     payment.Gateway,
		"operation":   payment.Operation,
		"reference":   payment.Reference,
		"user_id":     payment.UserID,
		"amount":      payment.Amount,
		"discount":    payment.Discount,
		"charge":      payment.Charge,
		"currency":    payment.Currency,
		"status":      payment.Status,
		"created_at":  payment.CreatedAt,
		"destination": payment.Destination,
	}
	if payment.TenantID != "" {
		row["tenant_kind"] = payment.TenantKind
		row["tenant_id"] = payment.TenantID
	}

	var saved []domain.Payment
	err := c.write("payments", func() error {
		body, err := c.doPost(ctx, "payments", row, "")
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &saved)
	})
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("payment insert %s returned no rows", payment.Reference)
	}

	c.logger.Info("supabase: payment recorded",
		zap.String("payment_id", saved[0].ID),
		zap.String("gateway", saved[0].Gateway),
		zap.String("reference", saved[0].Reference),
	)
	return &saved[0], nil
}

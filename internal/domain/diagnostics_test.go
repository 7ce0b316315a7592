package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestDiagnostics_PushAndLen(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := domain.NewDiagnostics(func() time.Time { return at })

	d.Push("retail.resolve", nil)
	assert.Equal(t, 0, d.Len())

	d.Push("retail.resolve", errors.New("session write failed"))
	d.Push("mpesa.pay", errors.New("timeout"))
	assert.Equal(t, 2, d.Len())

	entries := d.Entries()
	assert.Equal(t, domain.DiagnosticEntry{At: at, Source: "retail.resolve", Message: "session write failed"}, entries[0])

	entries[0].Source = "mutated"
	assert.Equal(t, "retail.resolve", d.Entries()[0].Source)
}

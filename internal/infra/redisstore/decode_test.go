package redisstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSession_TouchOnlyChangesLastUsed(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw, err := json.Marshal(domain.SessionAccount{
		UserID: "u-1", SessionableType: domain.TenantRetail, SessionableID: "r-2",
		LastUsedAt: created, CreatedAt: created,
	})
	require.NoError(t, err)

	touched := created.Add(time.Hour)
	got, err := decodeSession(map[string]string{
		fieldSession:  string(raw),
		fieldLastUsed: touched.Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-2", got.SessionableID)
	assert.True(t, touched.Equal(got.LastUsedAt))
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestDecodeSession_MissingBindingIsAbsent(t *testing.T) {
	got, err := decodeSession(map[string]string{fieldLastUsed: time.Now().Format(time.RFC3339Nano)})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = decodeSession(map[string]string{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

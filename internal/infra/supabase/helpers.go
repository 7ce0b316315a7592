package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// doPost inserts data into path and returns the stored representation.
// prefer replaces the default return=representation, e.g. to upsert.
func (c *Client) doPost(ctx context.Context, path string, data any, prefer string) ([]byte, error) {
	if prefer == "" {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, path, data, prefer)
}

// doPatch updates the rows matched by path's filters.
func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, path, data, "return=minimal")
	return err
}

// eq builds a PostgREST equality filter value.
func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// in builds a PostgREST in-list filter value.
func in(vs []string) string {
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = `"` + url.QueryEscape(v) + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}

package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ActionHandled("claim", "ok")
	c.ActionHandled("claim", "ok")
	c.ActionHandled("claim", "already_claimed")
	c.ClaimResult("claimed")
	c.PostSynced(PostRecreated)
	c.SessionsActive(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.actions.WithLabelValues("claim", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actions.WithLabelValues("claim", "already_claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.claims.WithLabelValues("claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.posts.WithLabelValues(PostRecreated)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sessions))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.PostSynced(PostCreated)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `market_category_post_syncs_total{outcome="created"} 1`)
}

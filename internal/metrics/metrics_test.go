package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/campaigns/42", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/campaigns/{id}", "418")))
}

func TestRecordGeneration_AndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordGeneration("success", 3*time.Second, 4, 2)
	m.RecordGeneration("parse_error", time.Second, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SectionsGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContentIncluded))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "newsletter_generations_total"))
}

package mainboilerplate

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPushMetrics(t *testing.T) {
	var method, path string
	var body []byte

	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var reg = prometheus.NewRegistry()
	var counter = prometheus.NewCounter(prometheus.CounterOpts{Name: "test_uploads_total", Help: "Test counter."})
	reg.MustRegister(counter)
	counter.Add(3)

	// Not configured: nothing is pushed.
	require.NoError(t, PushMetrics(MetricsConfig{}, reg))
	require.Equal(t, "", method)

	require.NoError(t, PushMetrics(MetricsConfig{PushGateway: srv.URL, Job: "deploy", Instance: "ci"}, reg))
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/deploy/instance/ci", path)
	require.NotEmpty(t, body)

	var failing = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	require.Error(t, PushMetrics(MetricsConfig{PushGateway: failing.URL, Job: "deploy"}, reg))
}

package routing

import (
	"net/http"

	"github.com/teilomillet/parley/server/metrics"
)

// metricsHandler exposes m's registry in the Prometheus text format.
func metricsHandler(m *metrics.Metrics) http.Handler {
	return m.Handler()
}

package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the registry counts as gauges. The gauges read the
// registry on scrape, so there is no separate bookkeeping to keep in sync.
func (a *App) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "collab_gateway_connected_principals",
			Help: "Number of distinct principals currently connected.",
		}, func() float64 {
			return float64(a.registry.Stats().Principals)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "collab_gateway_represented_groups",
			Help: "Number of distinct groups represented among connected principals.",
		}, func() float64 {
			return float64(a.registry.Stats().Groups)
		}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

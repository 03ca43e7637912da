package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/provisioning-sdk/pkg/application"
)

const DefaultPrometheusPath = "/debug/prometheus"

// PrometheusController exposes the default registry merged with any extra
// gatherers (module-private registries, test registries).
type PrometheusController struct {
	path    string
	handler http.Handler
}

func NewPrometheusController(path string, extra ...prometheus.Gatherer) application.Controller {
	if path == "" {
		path = DefaultPrometheusPath
	}
	gatherers := append(prometheus.Gatherers{prometheus.DefaultGatherer}, extra...)
	handler := promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		ErrorLog:          logrus.StandardLogger(),
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
	return &PrometheusController{
		path:    path,
		handler: promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer, handler),
	}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler).Methods(http.MethodGet)
}

package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Factory = (*prometheusFactory)(nil)

type prometheusFactory struct {
	registry       *prometheus.Registry
	http           *httpMetrics
	reconciliation *reconciliationMetrics
}

func NewFactory() Factory {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &prometheusFactory{
		registry:       reg,
		http:           newHTTPMetrics(reg),
		reconciliation: newReconciliationMetrics(reg),
	}
}

func (f *prometheusFactory) HTTP() HTTP {
	return f.http
}

func (f *prometheusFactory) Reconciliation() Reconciliation {
	return f.reconciliation
}

func (f *prometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

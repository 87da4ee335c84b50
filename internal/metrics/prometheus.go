package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	storeTotal   *prom.CounterVec
	storeSeconds *prom.HistogramVec
	callTotal    *prom.CounterVec
	callSeconds  *prom.HistogramVec
	linksWritten prom.Counter
}

func (p *promRecorder) IncStoreOp(op string, success bool) {
	p.storeTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveStoreOpSeconds(op string, success bool, seconds float64) {
	p.storeSeconds.WithLabelValues(op, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) IncCall(call string, success bool) {
	p.callTotal.WithLabelValues(call, strconv.FormatBool(success)).Inc()
}

func (p *promRecorder) ObserveCallSeconds(call string, success bool, seconds float64) {
	p.callSeconds.WithLabelValues(call, strconv.FormatBool(success)).Observe(seconds)
}

func (p *promRecorder) AddLinksWritten(n int) {
	if n > 0 {
		p.linksWritten.Add(float64(n))
	}
}

func newPrometheus() (*promRecorder, http.Handler) {
	registry := prom.NewRegistry()
	p := &promRecorder{
		storeTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "marginalia_store_ops_total",
			Help: "Total number of store operations",
		}, []string{"op", "success"}),
		storeSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "marginalia_store_op_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		callTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "marginalia_calls_total",
			Help: "Total number of embedding, chat and linking calls",
		}, []string{"call", "success"}),
		callSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "marginalia_call_seconds",
			Help:    "Embedding, chat and linking call duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"call", "success"}),
		linksWritten: prom.NewCounter(prom.CounterOpts{
			Name: "marginalia_links_written_total",
			Help: "Semantic links upserted",
		}),
	}
	registry.MustRegister(p.storeTotal, p.storeSeconds, p.callTotal, p.callSeconds, p.linksWritten)
	return p, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

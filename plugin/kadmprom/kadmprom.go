// Package kadmprom provides prometheus plug-in metrics for a kadmin
// client.
//
// This package tracks the following metrics under the following names,
// all metrics being counter vecs except call_latency_seconds, which is a
// histogram:
//
//	#{ns}_calls_submitted_total{internal="true|false"}
//	#{ns}_calls_assigned_total{node_id="#{node}"}
//	#{ns}_calls_sent_total{node_id="#{node}"}
//	#{ns}_calls_retried_total{name="#{call name}"}
//	#{ns}_calls_completed_total{outcome="ok|error"}
//	#{ns}_call_latency_seconds
//	#{ns}_metadata_refreshes_total{outcome="ok|error"}
//
// This can be used in a client like so:
//
//	m := kadmprom.NewMetrics("kadmin")
//	cl, err := kadmin.NewClient(
//		kadmin.WithNetworkClient(nc),
//		kadmin.WithMetadataManager(mm),
//		kadmin.WithHooks(m),
//		// ...other opts
//	)
//
// By default, metrics are installed under a new prometheus registry, but
// this can be overridden with the Registry option.
//
// Note that seed brokers use node ids prefixed with "seed_", matching
// kadmintransport's unknownSeedID encoding.
package kadmprom

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
)

var ( // interface checks to ensure we implement the hooks properly
	_ kadmin.HookCallSubmitted   = new(Metrics)
	_ kadmin.HookCallAssigned    = new(Metrics)
	_ kadmin.HookCallSent        = new(Metrics)
	_ kadmin.HookCallRetried     = new(Metrics)
	_ kadmin.HookCallCompleted   = new(Metrics)
	_ kadmin.HookMetadataRefresh = new(Metrics)
)

// Metrics provides prometheus metrics to a given registry.
type Metrics struct {
	cfg cfg

	submitted   *prometheus.CounterVec
	assigned    *prometheus.CounterVec
	sent        *prometheus.CounterVec
	retried     *prometheus.CounterVec
	completed   *prometheus.CounterVec
	latency     prometheus.Histogram
	metaRefresh *prometheus.CounterVec
}

// Registry returns the prometheus registry that metrics were added to.
func (m *Metrics) Registry() prometheus.Registerer {
	return m.cfg.reg
}

// Handler returns an http.Handler providing prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.cfg.gatherer, m.cfg.handlerOpts)
}

type cfg struct {
	namespace string

	reg      prometheus.Registerer
	gatherer prometheus.Gatherer

	handlerOpts  promhttp.HandlerOpts
	goCollectors bool
}

type RegistererGatherer interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// Opt applies options to further tune how prometheus metrics are gathered.
type Opt interface {
	apply(*cfg)
}

type opt struct{ fn func(*cfg) }

func (o opt) apply(c *cfg) { o.fn(c) }

// Registry sets the registerer and gatherer to add metrics to, rather
// than a new registry.
func Registry(rg RegistererGatherer) Opt {
	return opt{func(c *cfg) {
		c.reg = rg
		c.gatherer = rg
	}}
}

// Registerer sets the registerer to add metrics to, rather than a new registry.
func Registerer(reg prometheus.Registerer) Opt {
	return opt{func(c *cfg) { c.reg = reg }}
}

// Gatherer sets the gatherer to add metrics to, rather than a new registry.
func Gatherer(gatherer prometheus.Gatherer) Opt {
	return opt{func(c *cfg) { c.gatherer = gatherer }}
}

// GoCollectors adds the prometheus.NewProcessCollector and
// prometheus.NewGoCollector collectors to the Metric's registry.
func GoCollectors() Opt {
	return opt{func(c *cfg) { c.goCollectors = true }}
}

// HandlerOpts sets handler options to use if you wish to use the
// Metrics.Handler function.
func HandlerOpts(opts promhttp.HandlerOpts) Opt {
	return opt{func(c *cfg) { c.handlerOpts = opts }}
}

// NewMetrics returns a new Metrics that adds prometheus metrics to the
// registry under the given namespace.
func NewMetrics(namespace string, opts ...Opt) *Metrics {
	var regGatherer RegistererGatherer = prometheus.NewRegistry()
	c := cfg{
		namespace: namespace,
		reg:       regGatherer,
		gatherer:  regGatherer,
	}
	for _, o := range opts {
		o.apply(&c)
	}

	if c.goCollectors {
		c.reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
		c.reg.MustRegister(prometheus.NewGoCollector())
	}

	factory := promauto.With(c.reg)

	return &Metrics{
		cfg: c,

		submitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_submitted_total",
			Help:      "Total number of calls entering the Worker's pending set, by whether they are internal",
		}, []string{"internal"}),

		assigned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_assigned_total",
			Help:      "Total number of calls assigned a destination node, by node",
		}, []string{"node_id"}),

		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_sent_total",
			Help:      "Total number of calls handed to the NetworkClient, by node",
		}, []string{"node_id"}),

		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_retried_total",
			Help:      "Total number of calls re-queued by the retry policy",
		}, []string{"name"}),

		completed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_completed_total",
			Help:      "Total number of calls whose future completed, by outcome",
		}, []string{"outcome"}),

		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_latency_seconds",
			Help:      "Time from Call submission to future completion",
			Buckets:   prometheus.DefBuckets,
		}),

		metaRefresh: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_refreshes_total",
			Help:      "Total number of in-band metadata refresh calls completed, by outcome",
		}, []string{"outcome"}),
	}
}

func strnode(node int32) string {
	if node < 0 {
		return "seed_" + strconv.Itoa(int(node)-math.MinInt32)
	}
	return strconv.Itoa(int(node))
}

func (m *Metrics) OnCallSubmitted(_ string, internal bool) {
	m.submitted.WithLabelValues(strconv.FormatBool(internal)).Inc()
}

func (m *Metrics) OnCallAssigned(_ string, nodeID int32) {
	m.assigned.WithLabelValues(strnode(nodeID)).Inc()
}

func (m *Metrics) OnCallSent(_ string, nodeID int32, _ int) {
	m.sent.WithLabelValues(strnode(nodeID)).Inc()
}

func (m *Metrics) OnCallRetried(name string, _ int, _ error) {
	m.retried.WithLabelValues(name).Inc()
}

func (m *Metrics) OnCallCompleted(_ string, _ int, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completed.WithLabelValues(outcome).Inc()
	m.latency.Observe(took.Seconds())
}

func (m *Metrics) OnMetadataRefresh(_ int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.metaRefresh.WithLabelValues(outcome).Inc()
}

// Package metrics declares the prometheus collectors a novanet node
// exposes and the small HTTP server that serves them. Grounded on the
// teacher's metrics/metrics.go: a package-level var block of
// CounterVec/Gauge/GaugeVec/HistogramVec declarations behind a
// dedicated registry, a one-shot bindMetrics() registration guard, and
// a Start() that stands up a promhttp-backed listener alongside pprof.
// Generalised from drand's beacon/group/http/client metrics to
// novanet's comm/knowledge/dysfunction/chunkstore concerns.
package metrics

import (
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novanet/novanet/log"
)

// Registry is every novanet metric a node's /metrics endpoint serves.
var Registry = prometheus.NewRegistry()

var (
	// MessagesSent/MessagesReceived count wire frames by kind (spec §6).
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "novanet_messages_sent_total",
		Help: "Number of wire frames sent, by kind",
	}, []string{"kind"})

	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "novanet_messages_received_total",
		Help: "Number of wire frames received, by kind",
	}, []string{"kind"})

	// AEBounces counts anti-entropy bounce payloads produced, by kind
	// (spec §4.F).
	AEBounces = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "novanet_ae_bounces_total",
		Help: "Number of AE bounce payloads produced, by kind",
	}, []string{"kind"})

	// PeerSessions is the number of currently live comm sessions
	// (spec §4.E).
	PeerSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novanet_peer_sessions",
		Help: "Number of peer sessions currently tracked by comm",
	})

	// SectionElderCount/SectionPrefixBits describe our current SAP
	// (spec §3).
	SectionElderCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novanet_section_elder_count",
		Help: "Number of elders in our current section",
	})

	SectionPrefixBits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novanet_section_prefix_bits",
		Help: "Bit length of our current section's prefix",
	})

	// DysfunctionScore is the latest computed z-score per peer
	// (spec §4.J).
	DysfunctionScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "novanet_dysfunction_score",
		Help: "Latest dysfunction z-score computed for a peer",
	}, []string{"peer"})

	// ChunksStored/ChunkStoreCapacityPct describe the local chunk store
	// (spec §4.I).
	ChunksStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novanet_chunks_stored",
		Help: "Number of chunks currently held in the local chunk store",
	})

	ChunkStoreCapacityPct = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "novanet_chunkstore_capacity_pct",
		Help: "Local chunk store used capacity, percent",
	})

	// DeliveryLatency measures send_and_await latency by outcome
	// (spec §4.K/§5).
	DeliveryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "novanet_delivery_latency_seconds",
		Help:    "Latency of send_and_await calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	metricsBound = false
)

func bindMetrics() error {
	if metricsBound {
		return nil
	}
	metricsBound = true

	if err := Registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}

	collectorsList := []prometheus.Collector{
		MessagesSent,
		MessagesReceived,
		AEBounces,
		PeerSessions,
		SectionElderCount,
		SectionPrefixBits,
		DysfunctionScore,
		ChunksStored,
		ChunkStoreCapacityPct,
		DeliveryLatency,
	}
	for _, c := range collectorsList {
		if err := Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Start stands up a prometheus metrics server with debug endpoints,
// returning its listener so the caller can report its bound address.
func Start(bind string, l log.Logger, pprof http.Handler) net.Listener {
	if l == nil {
		l = log.DefaultLogger()
	}
	if err := bindMetrics(); err != nil {
		l.Warn("metrics", "metric setup failed", "err", err)
		return nil
	}

	if !strings.Contains(bind, ":") {
		bind = "localhost:" + bind
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		l.Warn("metrics", "listen failed", "err", err)
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
	if pprof != nil {
		mux.Handle("/debug/pprof/", pprof)
	}
	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, _ *http.Request) {
		runtime.GC()
		fmt.Fprint(w, "GC run complete")
	})

	server := http.Server{Addr: listener.Addr().String(), Handler: mux}
	go func() {
		l.Warn("metrics", "listen finished", "err", server.Serve(listener))
	}()
	return listener
}

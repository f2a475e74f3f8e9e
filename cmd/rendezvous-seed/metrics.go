package main

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// seedMetrics are the loader's Prometheus metrics.
type seedMetrics struct {
	rowsProcessed  prometheus.Counter
	rowsFailed     *prometheus.CounterVec
	batchesTotal   prometheus.Counter
	batchDuration  prometheus.Histogram
	cursorPosition prometheus.Gauge

	storeMemory *prometheus.GaugeVec
	indexSize   *prometheus.GaugeVec
	indexDocs   *prometheus.GaugeVec
}

func newSeedMetrics(reg prometheus.Registerer) *seedMetrics {
	m := &seedMetrics{
		rowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendezvous_seed",
			Name:      "rows_processed_total",
			Help:      "Rows loaded with profile and embedding",
		}),
		rowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rendezvous_seed",
			Name:      "rows_failed_total",
			Help:      "Rows that failed to load",
		}, []string{"reason"}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rendezvous_seed",
			Name:      "batches_total",
			Help:      "Batches sent",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rendezvous_seed",
			Name:      "batch_duration_seconds",
			Help:      "Batch upsert duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		cursorPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rendezvous_seed",
			Name:      "cursor_position",
			Help:      "Row offset of the last finished batch",
		}),
		storeMemory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rendezvous_seed",
			Name:      "store_memory_bytes",
			Help:      "Store memory usage",
		}, []string{"type"}),
		indexSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rendezvous_seed",
			Name:      "index_size_bytes",
			Help:      "FT.INFO component sizes",
		}, []string{"context", "component"}),
		indexDocs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rendezvous_seed",
			Name:      "index_docs_total",
			Help:      "Embeddings in the context index",
		}, []string{"context"}),
	}

	reg.MustRegister(
		m.rowsProcessed, m.rowsFailed,
		m.batchesTotal, m.batchDuration, m.cursorPosition,
		m.storeMemory, m.indexSize, m.indexDocs,
	)
	return m
}

// serveMetrics starts the scrape endpoint.
func serveMetrics(port string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server error", zap.Error(err))
		}
	}()
	return srv
}

// storePoller samples store memory and index stats until ctx is done.
type storePoller struct {
	client   rueidis.Client
	metrics  *seedMetrics
	index    string
	context  string
	interval time.Duration
}

func (p *storePoller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()
}

func (p *storePoller) poll(ctx context.Context) {
	p.pollMemory(ctx)
	p.pollIndex(ctx)
}

func (p *storePoller) pollMemory(ctx context.Context) {
	text, err := p.client.Do(ctx, p.client.B().Info().Section("memory").Build()).ToString()
	if err != nil {
		return
	}
	info := parseInfo(text)
	for field, label := range map[string]string{
		"used_memory":      "used",
		"used_memory_peak": "peak",
		"used_memory_rss":  "rss",
	} {
		if v, ok := info[field]; ok {
			p.metrics.storeMemory.WithLabelValues(label).Set(v)
		}
	}
}

func (p *storePoller) pollIndex(ctx context.Context) {
	arr, err := p.client.Do(ctx, p.client.B().FtInfo().Index(p.index).Build()).ToArray()
	if err != nil {
		return
	}

	// FT.INFO returns alternating key-value pairs.
	for i := 0; i+1 < len(arr); i += 2 {
		key, _ := arr[i].ToString()
		switch key {
		case "num_docs":
			if v, err := arr[i+1].AsFloat64(); err == nil {
				p.metrics.indexDocs.WithLabelValues(p.context).Set(v)
			}
		case "vector_index_sz_mb":
			if v, err := arr[i+1].AsFloat64(); err == nil {
				p.metrics.indexSize.WithLabelValues(p.context, "vector").Set(v * 1024 * 1024)
			}
		case "doc_table_size_mb":
			if v, err := arr[i+1].AsFloat64(); err == nil {
				p.metrics.indexSize.WithLabelValues(p.context, "data").Set(v * 1024 * 1024)
			}
		}
	}
}

// parseInfo reads the numeric "key:value" lines of an INFO reply.
func parseInfo(text string) map[string]float64 {
	out := make(map[string]float64)
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			out[key] = f
		}
	}
	return out
}

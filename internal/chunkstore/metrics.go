package chunkstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики хранилища чанков
type Metrics struct {
	loads           *prometheus.CounterVec
	hits            prometheus.Counter
	failures        prometheus.Counter
	unloads         prometheus.Counter
	resident        prometheus.Gauge
	generateSeconds prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// При reg == nil используется глобальный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "chunk_loads_total",
			Help:      "Чанков, загруженных в память, по источнику.",
		}, []string{"source"}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "chunk_hits_total",
			Help:      "Запросов загрузки, обслуженных из памяти.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "chunk_load_failures_total",
			Help:      "Неудачных загрузок чанков.",
		}),
		unloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "chunk_unloads_total",
			Help:      "Чанков, выгруженных из памяти.",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "resident_chunks",
			Help:      "Количество чанков в памяти.",
		}),
		generateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxelworld",
			Subsystem: "chunkstore",
			Name:      "chunk_generate_seconds",
			Help:      "Время генерации одного чанка.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(m.loads, m.hits, m.failures, m.unloads, m.resident, m.generateSeconds)
	return m
}

// Все методы допускают nil-приёмник, чтобы метрики были необязательными

func (m *Metrics) loaded(source Source) {
	if m != nil {
		m.loads.WithLabelValues(string(source)).Inc()
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) failed() {
	if m != nil {
		m.failures.Inc()
	}
}

func (m *Metrics) unloaded() {
	if m != nil {
		m.unloads.Inc()
	}
}

func (m *Metrics) setResident(n int) {
	if m != nil {
		m.resident.Set(float64(n))
	}
}

func (m *Metrics) observeGenerate(seconds float64) {
	if m != nil {
		m.generateSeconds.Observe(seconds)
	}
}

package norflash

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors updated by a Flash.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec
	bytesProgrammed prometheus.Counter
	bytesRead       prometheus.Counter
	sectorErases    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "norflash_operations_total",
				Help: "Number of flash operations by operation and result",
			},
			[]string{"op", "result"},
		),
		bytesProgrammed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "norflash_bytes_programmed_total",
				Help: "Number of bytes sent in page program commands",
			},
		),
		bytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "norflash_bytes_read_total",
				Help: "Number of bytes read, direct or memory-mapped",
			},
		),
		sectorErases: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "norflash_sector_erases_total",
				Help: "Number of successful sector erases",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.bytesProgrammed, m.bytesRead, m.sectorErases)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) addProgrammed(n int) {
	if m == nil {
		return
	}
	m.bytesProgrammed.Add(float64(n))
}

func (m *Metrics) addRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) addSectorErase() {
	if m == nil {
		return
	}
	m.sectorErases.Inc()
}

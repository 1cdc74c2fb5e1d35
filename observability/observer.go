package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rexbrahh/raydium-swaps/ingestor/decoder"
)

// WalkMetrics is a prometheus-backed walk observer. Decode errors are
// labelled by program identifier; classifier skips are a plain counter
// because skipped programs are unbounded.
type WalkMetrics struct {
	swaps        prometheus.Counter
	instructions prometheus.Counter
	blocks       prometheus.Counter
	skips        prometheus.Counter
	decodeErrors *prometheus.CounterVec
}

var _ decoder.Observer = (*WalkMetrics)(nil)

// NewWalkMetrics registers the walk counters with reg. A nil registerer
// gets a private registry, keeping the metrics inert.
func NewWalkMetrics(reg prometheus.Registerer) *WalkMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &WalkMetrics{
		swaps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "ingestor",
			Name:      MetricSwapsTotal,
			Help:      "Total swap records produced by block walks.",
		}),
		instructions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "ingestor",
			Name:      MetricInstructionsExamined,
			Help:      "Total instructions examined by block walks.",
		}),
		blocks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "ingestor",
			Name:      MetricBlocksProcessed,
			Help:      "Blocks fully walked.",
		}),
		skips: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "ingestor",
			Name:      MetricClassifierSkips,
			Help:      "Instructions skipped because their program is not registered.",
		}),
		decodeErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "ingestor",
			Name:      MetricDecodeErrorsTotal,
			Help:      "Per-program instruction decode failures.",
		}, []string{"program"}),
	}
}

func (m *WalkMetrics) OnSkip(string) {
	m.skips.Inc()
}

func (m *WalkMetrics) OnDecodeError(program string, _ error) {
	m.decodeErrors.WithLabelValues(program).Inc()
}

func (m *WalkMetrics) OnSummary(summary decoder.Summary) {
	m.blocks.Inc()
	m.swaps.Add(float64(summary.SwapsProduced))
	m.instructions.Add(float64(summary.InstructionsExamined))
}

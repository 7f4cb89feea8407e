package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts scanner activity.
type Metrics struct {
	blocks           prometheus.Counter
	outputs          prometheus.Counter
	trialDecryptions prometheus.Counter
	matchedNotes     prometheus.Counter
	matchedSpends    prometheus.Counter
	skipped          *prometheus.CounterVec
}

// NewMetrics registers scanner metrics with reg. A nil reg yields metrics
// that are counted but never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		blocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "blocks_total",
			Help:      "Total number of compact blocks scanned",
		}),
		outputs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "outputs_total",
			Help:      "Total number of shielded outputs appended to the commitment tree",
		}),
		trialDecryptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "trial_decryptions_total",
			Help:      "Total number of compact trial decryptions attempted",
		}),
		matchedNotes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "matched_notes_total",
			Help:      "Total number of outputs that decrypted to a wallet note",
		}),
		matchedSpends: f.NewCounter(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "matched_spends_total",
			Help:      "Total number of spends of wallet notes detected",
		}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zcash_lightwallet",
			Subsystem: "scanner",
			Name:      "skipped_records_total",
			Help:      "Total number of malformed compact records skipped",
		}, []string{"kind"}),
	}
}

package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of a round verification.
const (
	OutcomeVerified = "verified"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	// FetchRequests counts requests sent to a beacon network, by kind of resource.
	FetchRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_client_requests_total",
		Help: "Number of requests issued to the beacon network",
	}, []string{"transport", "kind"})

	// FetchErrors counts failed requests, by kind of resource.
	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_client_request_errors_total",
		Help: "Number of requests to the beacon network that failed",
	}, []string{"transport", "kind"})

	// FetchLatency measures how long requests take.
	FetchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beacon_client_request_duration_seconds",
		Help:    "Duration of requests issued to the beacon network",
		Buckets: prometheus.DefBuckets,
	}, []string{"transport", "kind"})

	// Verifications counts round verifications by outcome.
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_client_verifications_total",
		Help: "Number of rounds checked against their chain public key",
	}, []string{"chain", "outcome"})

	// HighestVerifiedRound is the highest round verified for each chain.
	// Set it through ObserveVerifiedRound.
	HighestVerifiedRound = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beacon_client_highest_verified_round",
		Help: "Highest round that passed verification",
	}, []string{"chain"})
)

var clientMetrics = []prometheus.Collector{
	FetchRequests,
	FetchErrors,
	FetchLatency,
	Verifications,
	HighestVerifiedRound,
}

// RegisterClientMetrics registers the client collectors with r. Collectors
// already registered with r are not an error.
func RegisterClientMetrics(r prometheus.Registerer) error {
	var errs error
	for _, c := range clientMetrics {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

var highest = struct {
	sync.Mutex
	rounds map[string]uint64
}{rounds: make(map[string]uint64)}

// ObserveVerifiedRound raises HighestVerifiedRound of chain to round. Older
// rounds verified later leave it unchanged.
func ObserveVerifiedRound(chain string, round uint64) {
	highest.Lock()
	defer highest.Unlock()
	if round <= highest.rounds[chain] {
		return
	}
	highest.rounds[chain] = round
	HighestVerifiedRound.WithLabelValues(chain).Set(float64(round))
}

package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metric names.
const (
	MetricNameSessionsStarted   = "loot_sessions_started_total"
	MetricNameSessionsFinished  = "loot_sessions_finished_total"
	MetricNameAwards            = "loot_awards_total"
	MetricNameRejectedActions   = "loot_rejected_actions_total"
	MetricNameScoreCache        = "loot_score_cache_total"
	MetricNameScoreErrors       = "loot_score_errors_total"
	MetricNameEvaluateDuration  = "loot_evaluate_duration_seconds"
	MetricNameRankingCandidates = "loot_ranking_candidates"
)

// Label names.
const (
	LabelKind   = "kind"
	LabelAction = "action"
	LabelResult = "result"
	LabelEngine = "engine"
)

// Award kinds and cache results used as label values.
const (
	AwardItem       = "item"
	AwardGuaranteed = "guaranteed"
	CacheHit        = "hit"
	CacheMiss       = "miss"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: MetricNameSessionsStarted,
		Help: "Number of distribution sessions started",
	})

	SessionsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: MetricNameSessionsFinished,
		Help: "Number of distribution sessions that reached the finished state",
	})

	Awards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameAwards,
			Help: "Number of successful awards by kind",
		},
		[]string{LabelKind},
	)

	RejectedActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameRejectedActions,
			Help: "Number of session actions rejected in the current state",
		},
		[]string{LabelAction},
	)

	ScoreCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameScoreCache,
			Help: "Score cache lookups by result",
		},
		[]string{LabelResult},
	)

	ScoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameScoreErrors,
			Help: "Scoring failures by engine",
		},
		[]string{LabelEngine},
	)

	EvaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricNameEvaluateDuration,
		Help:    "Time spent ranking every unit of a session",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	RankingCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricNameRankingCandidates,
		Help:    "Competing candidates per ranking",
		Buckets: prometheus.LinearBuckets(0, 4, 10),
	})
)

// ServeMetrics exposes the default registry on addr at /metrics until ctx is done.
//
// Precondition: addr must be a valid listen address; logger must be non-nil.
// Postcondition: Returns nil after a clean shutdown or the listener error.
func ServeMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

package services

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/logging"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/metrics"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// Run kinds, used as metric labels.
const (
	runKindFull       = "full"
	runKindCoaching   = "coaching"
	runKindPostMortem = "post_mortem"
)

// analysisRun tracks one pass through the orchestrator state machine.
type analysisRun struct {
	kind       string
	userID     uuid.UUID
	state      models.AnalysisState
	phaseStart time.Time
	started    time.Time
	logger     *zap.Logger
}

func newAnalysisRun(kind string, userID uuid.UUID, trigger models.TriggerSource, logger *zap.Logger) *analysisRun {
	now := time.Now()
	return &analysisRun{
		kind:       kind,
		userID:     userID,
		state:      models.StateIdle,
		phaseStart: now,
		started:    now,
		logger: logger.With(
			zap.String("run", kind),
			zap.String("user_id", userID.String()),
			zap.String("trigger", string(trigger)),
		),
	}
}

// enter closes the current phase and moves to next.
func (r *analysisRun) enter(next models.AnalysisState) {
	now := time.Now()
	if r.state != models.StateIdle {
		metrics.ObservePhase(string(r.state), now.Sub(r.phaseStart))
	}
	r.logger.Debug("Analysis state change",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)))
	r.state = next
	r.phaseStart = now
}

// finish marks the run done and stamps the result.
func (r *analysisRun) finish(status models.AnalysisStatus) models.AnalysisState {
	r.enter(models.StateDone)
	metrics.RecordRun(r.kind, string(status))
	r.logger.Info("Analysis finished",
		zap.String("status", string(status)),
		zap.Duration("elapsed", time.Since(r.started)))
	return r.state
}

// stopEarly ends the run with needs_more_data. err wraps
// apperrors.ErrInsufficientData and says what was missing.
func (r *analysisRun) stopEarly(result *models.AnalysisResult, reason string, err error) *models.AnalysisResult {
	result.Status = models.AnalysisNeedsMoreData
	result.Reason = reason
	result.NeedsMoreData = true
	result.CoachingSkipped = true
	r.logger.Info("Not enough data to analyze",
		zap.String("reason", reason),
		zap.Error(err))
	result.FinalState = r.finish(result.Status)
	return result
}

// fail marks the run failed in its current phase and returns err.
func (r *analysisRun) fail(err error) error {
	failedIn := r.state
	r.enter(models.StateError)
	metrics.RecordRun(r.kind, "failed")
	r.logger.Error("Analysis failed",
		zap.String("phase", string(failedIn)),
		zap.Duration("elapsed", time.Since(r.started)),
		zap.String("error", logging.SanitizeError(err)))
	return err
}

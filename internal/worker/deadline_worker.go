package worker

import (
	"context"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	"github.com/rs/zerolog"
)

// DeadlineWorker sweeps for open sessions whose time window has passed
// the grace period and submits them with whatever answers were
// buffered. The conditional close in the session repository makes the
// race against a late user submission harmless: whichever side commits
// first wins, the other becomes a no-op.
type DeadlineWorker struct {
	sessions       *repository.TestSessionRepository
	attemptService *service.AttemptService
	grace          time.Duration
	interval       time.Duration
	log            zerolog.Logger
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(
	sessions *repository.TestSessionRepository,
	attemptService *service.AttemptService,
	grace time.Duration,
	log zerolog.Logger,
) *DeadlineWorker {
	return &DeadlineWorker{
		sessions:       sessions,
		attemptService: attemptService,
		grace:          grace,
		interval:       15 * time.Second,
		log:            log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("grace", w.grace).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DeadlineWorker) sweep(ctx context.Context) {
	expired, err := w.sessions.ListExpiredOpen(ctx, w.grace)
	if err != nil {
		w.log.Error().Err(err).Msg("List expired sessions error")
		return
	}

	for _, s := range expired {
		ref := service.AttemptRef{
			SessionID: s.ID,
			StudentID: s.StudentID,
			TestID:    s.TestID,
		}

		result, err := w.attemptService.SubmitBuffered(ctx, ref)
		if err != nil {
			w.log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("Auto-submit error")
			continue
		}

		if !result.AlreadySubmitted {
			w.log.Info().
				Str("session_id", s.ID.String()).
				Int("student_id", s.StudentID).
				Int("total_score", result.TotalScore).
				Msg("Expired session auto-submitted")
		}
	}
}

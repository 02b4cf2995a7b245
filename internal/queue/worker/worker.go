package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/notifications"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (jobs.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, runAt time.Time, reason string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type Config struct {
	PollInterval time.Duration
	WorkerID     string
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier) *Worker {
	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("worker received shutdown signal")
			return nil

		case <-ticker.C:
			// drain everything runnable before going back to sleep
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					log.Printf("process error: %v", err)
					break
				}

				if !processed {
					break
				}
			}
		}
	}
}

func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {

	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	err = w.execute(ctx, j)

	if err != nil {
		w.handleFailure(ctx, j, err)
		return true, nil
	}

	err = w.repo.MarkDone(ctx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	decoded, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	switch p := decoded.(type) {
	case jobs.ApprovalDecisionPayload:
		return w.notifier.SendApprovalDecision(ctx, notifications.SendApprovalDecisionInput{
			Email:    p.Email,
			Decision: p.Decision,
		})

	case jobs.RegistrationReceiptPayload:
		return w.notifier.SendRegistrationReceipt(ctx, notifications.SendRegistrationReceiptInput{
			Email: p.Email,
		})

	default:
		return jobs.ErrInvalidJobType
	}
}

func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) {
	log.Printf("job failed id=%s type=%s attempt=%d err=%v", j.ID, j.Type, j.Attempts, cause)

	// attempts was already bumped by the claim
	if j.Attempts >= j.MaxTries {
		_ = w.repo.MarkFailed(ctx, j.ID, cause.Error())
		return
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	_ = w.repo.MarkRetry(ctx, j.ID, runAt, cause.Error())
}

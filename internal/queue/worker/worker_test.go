package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/notifications"
)

type fakeRepo struct {
	claimNext func(ctx context.Context, workerID string) (jobs.Job, error)

	done    []string
	retried []string
	retryAt time.Time
	failed  []string
}

func (f *fakeRepo) ClaimNext(ctx context.Context, workerID string) (jobs.Job, error) {
	return f.claimNext(ctx, workerID)
}

func (f *fakeRepo) MarkDone(ctx context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeRepo) MarkRetry(ctx context.Context, id string, runAt time.Time, reason string) error {
	f.retried = append(f.retried, id)
	f.retryAt = runAt
	return nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeNotifier struct {
	decisions []notifications.SendApprovalDecisionInput
	receipts  []notifications.SendRegistrationReceiptInput
	err       error
}

func (f *fakeNotifier) SendApprovalDecision(ctx context.Context, input notifications.SendApprovalDecisionInput) error {
	f.decisions = append(f.decisions, input)
	return f.err
}

func (f *fakeNotifier) SendRegistrationReceipt(ctx context.Context, input notifications.SendRegistrationReceiptInput) error {
	f.receipts = append(f.receipts, input)
	return f.err
}

func decisionJob(t *testing.T, attempts int) jobs.Job {
	t.Helper()

	payload, err := jobs.EncodePayload(jobs.JobSendApprovalDecision, jobs.ApprovalDecisionPayload{
		UserID:   "u-1",
		Email:    "pending@example.com",
		Decision: "approved",
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	j, err := jobs.NewJob(jobs.JobSendApprovalDecision, payload, time.Time{})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	j.Attempts = attempts
	return j
}

func TestProcessOne_Success(t *testing.T) {
	j := decisionJob(t, 1)

	repo := &fakeRepo{
		claimNext: func(ctx context.Context, workerID string) (jobs.Job, error) {
			return j, nil
		},
	}
	notifier := &fakeNotifier{}

	w := New(Config{PollInterval: time.Second, WorkerID: "test-1"}, repo, notifier)

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if !processed {
		t.Fatalf("expected a processed job")
	}

	if len(notifier.decisions) != 1 || notifier.decisions[0].Email != "pending@example.com" {
		t.Fatalf("notification not delivered: %+v", notifier.decisions)
	}

	if len(repo.done) != 1 || repo.done[0] != j.ID {
		t.Fatalf("job not marked done: %+v", repo.done)
	}
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	repo := &fakeRepo{
		claimNext: func(ctx context.Context, workerID string) (jobs.Job, error) {
			return jobs.Job{}, jobs.ErrJobNotFound
		},
	}

	w := New(Config{PollInterval: time.Second, WorkerID: "test-1"}, repo, &fakeNotifier{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if processed {
		t.Fatalf("empty queue must not report a processed job")
	}
}

func TestProcessOne_FailureSchedulesRetry(t *testing.T) {
	j := decisionJob(t, 1)

	repo := &fakeRepo{
		claimNext: func(ctx context.Context, workerID string) (jobs.Job, error) {
			return j, nil
		},
	}
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	w := New(Config{PollInterval: time.Second, WorkerID: "test-1"}, repo, notifier)

	before := time.Now().UTC()

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if !processed {
		t.Fatalf("a failed job still counts as processed")
	}

	if len(repo.retried) != 1 || len(repo.failed) != 0 {
		t.Fatalf("expected a retry, got retried=%v failed=%v", repo.retried, repo.failed)
	}

	if !repo.retryAt.After(before) {
		t.Fatalf("retry must be scheduled in the future, got %v", repo.retryAt)
	}
}

func TestProcessOne_ExhaustedAttemptsFail(t *testing.T) {
	j := decisionJob(t, 5) // MaxTries defaults to 5 and the claim already bumped attempts

	repo := &fakeRepo{
		claimNext: func(ctx context.Context, workerID string) (jobs.Job, error) {
			return j, nil
		},
	}
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	w := New(Config{PollInterval: time.Second, WorkerID: "test-1"}, repo, notifier)

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if !processed {
		t.Fatalf("expected a processed job")
	}

	if len(repo.failed) != 1 || len(repo.retried) != 0 {
		t.Fatalf("expected a terminal failure, got retried=%v failed=%v", repo.retried, repo.failed)
	}
}

func TestProcessOne_RoutesReceipts(t *testing.T) {
	payload, err := jobs.EncodePayload(jobs.JobSendRegistrationReceipt, jobs.RegistrationReceiptPayload{
		UserID: "u-1",
		Email:  "new@example.com",
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	j, err := jobs.NewJob(jobs.JobSendRegistrationReceipt, payload, time.Time{})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	repo := &fakeRepo{
		claimNext: func(ctx context.Context, workerID string) (jobs.Job, error) {
			return j, nil
		},
	}
	notifier := &fakeNotifier{}

	w := New(Config{PollInterval: time.Second, WorkerID: "test-1"}, repo, notifier)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if len(notifier.receipts) != 1 || notifier.receipts[0].Email != "new@example.com" {
		t.Fatalf("receipt not delivered: %+v", notifier.receipts)
	}
}

func TestExponentialBackoff_GrowsAndCaps(t *testing.T) {
	if ExponentialBackoff(0) < 2*time.Second {
		t.Fatalf("first retry under the base delay")
	}

	if ExponentialBackoff(1) < ExponentialBackoff(0)-250*time.Millisecond {
		t.Fatalf("backoff did not grow")
	}

	// far past the cap
	if d := ExponentialBackoff(30); d > 5*time.Minute+time.Second {
		t.Fatalf("backoff exceeded the cap: %v", d)
	}
}

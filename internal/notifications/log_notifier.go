package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier is the only real delivery channel for now: it logs. Swapping
// in an email provider means implementing Notifier and nothing else.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendApprovalDecision(ctx context.Context, in SendApprovalDecisionInput) error {
	if err := simulatedDelay(ctx); err != nil {
		return err
	}

	log.Printf("notification.approval_decision email=%s decision=%s", in.Email, in.Decision)
	return nil
}

func (n *LogNotifier) SendRegistrationReceipt(ctx context.Context, in SendRegistrationReceiptInput) error {
	if err := simulatedDelay(ctx); err != nil {
		return err
	}

	log.Printf("notification.registration_receipt email=%s", in.Email)
	return nil
}

// Optional env knobs to simulate a slow or down provider in dev.
func simulatedDelay(ctx context.Context) error {
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

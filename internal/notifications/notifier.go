package notifications

import "context"

type SendApprovalDecisionInput struct {
	Email    string
	Decision string // approved | rejected
}

type SendRegistrationReceiptInput struct {
	Email string
}

type Notifier interface {
	SendApprovalDecision(ctx context.Context, input SendApprovalDecisionInput) error
	SendRegistrationReceipt(ctx context.Context, input SendRegistrationReceiptInput) error
}

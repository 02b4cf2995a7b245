package jobs

import "strings"

// ValidatePayload performs minimal validation on decoded payloads before a
// job is enqueued.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobSendApprovalDecision:
		var p ApprovalDecisionPayload
		switch v := payload.(type) {
		case ApprovalDecisionPayload:
			p = v
		case *ApprovalDecisionPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.UserID) == "" || trim(p.Email) == "" {
			return ErrInvalidJobPayload
		}
		if p.Decision != "approved" && p.Decision != "rejected" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobSendRegistrationReceipt:
		var p RegistrationReceiptPayload
		switch v := payload.(type) {
		case RegistrationReceiptPayload:
			p = v
		case *RegistrationReceiptPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.UserID) == "" || trim(p.Email) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}

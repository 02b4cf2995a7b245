package jobs

// ApprovalDecisionPayload describes an admin decision to deliver. Keep the
// payload minimal and ID-based; the worker does not re-read the user row,
// the decision text is what was decided at the time.
type ApprovalDecisionPayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Decision  string `json:"decision"` // approved | rejected
	DecidedBy string `json:"decidedBy,omitempty"`
	RequestID string `json:"requestId,omitempty"` // optional: correlation
}

// RegistrationReceiptPayload is the "thanks, wait for approval" message.
type RegistrationReceiptPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

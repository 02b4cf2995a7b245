package jobs

type JobType string

const (
	// an admin approved or rejected a user
	JobSendApprovalDecision JobType = "send_approval_decision"
	// a fresh registration landed, tell the user to wait for approval
	JobSendRegistrationReceipt JobType = "send_registration_receipt"
)

// check to see if the job type is a known constant

func (t JobType) IsValid() bool {
	switch t {
	case JobSendApprovalDecision, JobSendRegistrationReceipt:
		return true
	default:
		return false
	}
}

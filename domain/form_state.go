package domain

type FormPhase string

const (
	PhaseIdle       FormPhase = "idle"
	PhaseValidating FormPhase = "validating"
	PhaseSubmitting FormPhase = "submitting"
	PhaseSuccess    FormPhase = "success"
	PhaseFailed     FormPhase = "failed"
)

// FormState is a snapshot of one payment form session.
type FormState struct {
	LoanID      string    `json:"loanId"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	IsBusy      bool      `json:"isBusy"`
	IsDone      bool      `json:"isDone"`
	Phase       FormPhase `json:"phase"`
	LastOutcome FormPhase `json:"lastOutcome,omitempty"`
}

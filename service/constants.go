package service

// User-visible texts.
const (
	StatusBlankInput      = "Please enter valid Loan ID and Amount."
	StatusInvalidAmount   = "Please enter a valid amount."
	StatusSubmitted       = "Payment Submitted Successfully."
	StatusSubmitFailed    = "Payment submission failed."
	StatusFailedWithCode  = "Payment submission failed with code: %d"
	StatusFailedWithError = "Payment submission failed: %s"

	DefaultOutcomeMessage = "Payment outcome received."

	ProgressTextFormat      = "Loan Progress: %d%%"
	ProgressTextPlaceholder = "Loan Progress: --%"
)

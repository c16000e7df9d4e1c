package domain

// Notification types carried in the "type" key of a push data payload.
const (
	NotificationLoanUpdate     = "loan_update"
	NotificationPaymentOutcome = "payment_outcome"
)

// PushMessage is one inbound message from the push-notification transport.
// Data carries the typed payload; Notification is display-only.
type PushMessage struct {
	From         string            `json:"from,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Notification *PushNotification `json:"notification,omitempty"`
}

type PushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// TokenRefresh is delivered when the transport issues a new device token.
type TokenRefresh struct {
	Token string `json:"token"`
}

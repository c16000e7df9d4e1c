package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loan-widget/apperr"
	"loan-widget/domain"
)

const (
	RoutingKeyMessage = "push.message"
	RoutingKeyToken   = "push.token"
)

// Handler receives decoded push events.
type Handler interface {
	HandleMessage(ctx context.Context, msg domain.PushMessage)
	HandleNewToken(ctx context.Context, token string)
}

// Dispatcher decodes raw push payloads and hands them to a Handler.
type Dispatcher struct {
	handler Handler
}

func NewDispatcher(handler Handler) *Dispatcher {
	return &Dispatcher{handler: handler}
}

// Dispatch routes body by routing key. It returns an error only when the
// payload cannot be decoded or the key is unknown; handler outcomes are
// never reported back.
func (d *Dispatcher) Dispatch(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case RoutingKeyMessage:
		msg, err := DecodeMessage(body)
		if err != nil {
			return err
		}
		d.handler.HandleMessage(ctx, msg)
		return nil
	case RoutingKeyToken:
		token, err := DecodeToken(body)
		if err != nil {
			return err
		}
		d.handler.HandleNewToken(ctx, token)
		return nil
	default:
		return fmt.Errorf("no handler for routing key %q", routingKey)
	}
}

func DecodeMessage(body []byte) (domain.PushMessage, error) {
	var msg domain.PushMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return domain.PushMessage{}, &apperr.DeserializationError{What: "push message", Err: err}
	}
	return msg, nil
}

func DecodeToken(body []byte) (string, error) {
	var ev domain.TokenRefresh
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", &apperr.DeserializationError{What: "token refresh", Err: err}
	}
	token := strings.TrimSpace(ev.Token)
	if token == "" {
		return "", &apperr.DeserializationError{What: "token refresh", Err: fmt.Errorf("token is empty")}
	}
	return token, nil
}

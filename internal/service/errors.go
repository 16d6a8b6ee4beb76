package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/restaurant/pkg/logging"
)

var (
	ErrValidation          = errors.New("validation")          // 400
	ErrNotFound            = errors.New("not found")           // 404
	ErrConflict            = errors.New("conflict")            // 400 for duplicate users
	ErrUnauthorized        = errors.New("unauthorized")        // 401
	ErrInvalidCredentials  = errors.New("invalid credentials") // 401
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// FieldError reports which input field was rejected and why.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type NopPublisher struct{}

func (NopPublisher) PublishEvent(context.Context, string, string, any) error { return nil }

// publish never fails the caller; a lost event is only logged.
func publish(ctx context.Context, p EventPublisher, topic, key string, event map[string]any) {
	if p == nil {
		return
	}
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", topic, "type", event["type"], "error", err)
	}
}

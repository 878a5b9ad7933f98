package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrChannelSend     = errors.New("channel send failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation failed")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type UnknownTemplateError struct {
	Template string
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown template %q", e.Template)
}

func (e *UnknownTemplateError) Is(target error) bool { return target == ErrUnknownTemplate }

// ChannelSendError keeps the provider's reason verbatim.
type ChannelSendError struct {
	Channel Channel
	Reason  string
	Err     error
}

func (e *ChannelSendError) Error() string {
	return fmt.Sprintf("%s send failed: %s", e.Channel, e.Reason)
}

func (e *ChannelSendError) Is(target error) bool { return target == ErrChannelSend }

func (e *ChannelSendError) Unwrap() error { return e.Err }

func NewChannelSendError(ch Channel, err error) *ChannelSendError {
	return &ChannelSendError{Channel: ch, Reason: err.Error(), Err: err}
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

func (v *ValidationErrors) Add(field, msg string) {
	*v = append(*v, ValidationError{Field: field, Message: msg})
}

func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

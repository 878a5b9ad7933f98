// Package clienttest provides testify mocks of the messaging channels.
package clienttest

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type SMS struct {
	mock.Mock
}

func (m *SMS) SendSMS(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

type Email struct {
	mock.Mock
}

func (m *Email) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	args := m.Called(ctx, to, subject, html)
	return args.String(0), args.Error(1)
}

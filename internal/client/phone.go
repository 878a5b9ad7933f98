package client

import (
	"fmt"
	"strings"
)

// NormalizeE164 converts a user-entered phone number to E.164, assuming US
// numbers when no country code is given.
func NormalizeE164(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number %q", phone)
	}

	switch {
	case strings.HasPrefix(strings.TrimSpace(phone), "+"):
		return "+" + digits, nil
	case len(digits) == 10:
		return "+1" + digits, nil
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits, nil
	}
	return "+1" + digits, nil
}

package credentials

import "fmt"

// SecureString wraps a secret value so it never prints in logs or %v
// formatting and can be explicitly wiped from memory once no longer needed.
type SecureString struct {
	value []byte
}

func newSecureString(s string) *SecureString {
	return &SecureString{value: []byte(s)}
}

// NewSecureString wraps an externally-sourced secret.
func NewSecureString(s string) *SecureString {
	return newSecureString(s)
}

// String returns the underlying secret value.
func (s *SecureString) String() string {
	if s == nil {
		return ""
	}
	return string(s.value)
}

// Close zeroes the underlying bytes. Safe to call more than once.
func (s *SecureString) Close() {
	if s == nil {
		return
	}
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = nil
}

// GoString renders a fixed, redacted representation so fmt's %#v verb never
// leaks the secret either.
func (s *SecureString) GoString() string {
	return "SecureString([REDACTED])"
}

// Format implements fmt.Formatter so every verb (%v, %s, %q, %#v, ...)
// renders the same redacted placeholder instead of the secret value.
func (s *SecureString) Format(f fmt.State, verb rune) {
	f.Write([]byte("SecureString([REDACTED])"))
}

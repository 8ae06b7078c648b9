// Package qrsession issues time-boxed QR attendance sessions and verifies
// scanned codes against them.
package qrsession

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

var (
	ErrClassNotFound    = errors.New("class not found")
	ErrSessionNotFound  = errors.New("qr session not found")
	ErrMalformedPayload = errors.New("invalid QR code format")
	ErrSessionInvalid   = errors.New("invalid or expired QR code")
	ErrSessionExpired   = errors.New("QR code session has expired")
)

// Session is one QR attendance window for a class.
type Session struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id"`
	Code      string    `json:"session_code"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Remaining is the time left before expiry at now, never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Expired reports whether the session can no longer be scanned at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Payload is the JSON encoded into the QR image. It carries no version
// field, so older scanners keep working.
type Payload struct {
	SessionID   string `json:"sessionId"`
	SessionCode string `json:"sessionCode"`
	ClassID     string `json:"classId"`
	ClassName   string `json:"className"`
}

// Encode returns the JSON text placed in the QR code.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	return string(b), err
}

// ParsePayload decodes scanned text.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return Payload{}, ErrMalformedPayload
	}
	if p.SessionID == "" || p.SessionCode == "" {
		return Payload{}, ErrMalformedPayload
	}
	return p, nil
}

const (
	codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	codeLength   = 13
)

// NewCode returns a random base-36 session code.
func NewCode() (string, error) {
	var sb strings.Builder
	base := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// FormatRemaining renders d as m:ss like the countdown badge.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

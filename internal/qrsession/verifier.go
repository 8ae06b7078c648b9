package qrsession

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Verifier checks scanned QR text against the stored session.
type Verifier struct {
	repo  *Repository
	cache *Cache
	log   *zap.Logger
	now   func() time.Time
}

// NewVerifier creates a verifier; cache may be nil.
func NewVerifier(repo *Repository, cache *Cache, log *zap.Logger) *Verifier {
	return &Verifier{repo: repo, cache: cache, log: log, now: time.Now}
}

// Verify parses raw and returns the live session it refers to.
//
// Errors: ErrMalformedPayload when raw is not a session payload,
// ErrSessionInvalid when no session matches or it was ended before its
// expiry, ErrSessionExpired once expires_at has passed.
func (v *Verifier) Verify(ctx context.Context, raw string) (Session, Payload, error) {
	p, err := ParsePayload(raw)
	if err != nil {
		return Session{}, Payload{}, err
	}

	s, err := v.lookup(ctx, p)
	if err != nil {
		return Session{}, Payload{}, err
	}
	if s == nil || s.ClassID != p.ClassID {
		return Session{}, p, ErrSessionInvalid
	}
	now := v.now()
	if s.Expired(now) {
		return *s, p, ErrSessionExpired
	}
	if !s.Active {
		return *s, p, ErrSessionInvalid
	}
	return *s, p, nil
}

func (v *Verifier) lookup(ctx context.Context, p Payload) (*Session, error) {
	cached, err := v.cache.Get(ctx, p.SessionID)
	if err != nil {
		v.log.Warn("qr session cache read", zap.String("session_id", p.SessionID), zap.Error(err))
	}
	if cached != nil && cached.Code == p.SessionCode && cached.Active {
		return cached, nil
	}
	return v.repo.ByIDAndCode(ctx, p.SessionID, p.SessionCode)
}

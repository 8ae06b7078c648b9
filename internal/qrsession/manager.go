package qrsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classroll/internal/metrics"
	"classroll/internal/roster"
)

// DefaultTTL is how long a generated session accepts scans.
const DefaultTTL = 10 * time.Minute

// ClassFinder resolves a class owned by a teacher; nil means not found.
type ClassFinder interface {
	GetClass(ctx context.Context, teacherID, id string) (*roster.Class, error)
}

// Issued is a freshly generated session and its QR payload.
type Issued struct {
	Session Session `json:"session"`
	Payload Payload `json:"payload"`
}

type watcher struct {
	sessionID string
	cancel    context.CancelFunc
}

// Manager creates and ends sessions and auto-ends them at expiry. Each
// active session has one watcher goroutine running a Countdown; it is
// cancelled when the session is ended, replaced, or the manager closes.
type Manager struct {
	repo    *Repository
	classes ClassFinder
	cache   *Cache
	log     *zap.Logger
	ttl     time.Duration
	tick    time.Duration
	now     func() time.Time

	mu       sync.Mutex
	watchers map[string]watcher // by class id
	wg       sync.WaitGroup
	ctx      context.Context
	stop     context.CancelFunc
}

// NewManager creates a manager; ttl <= 0 uses DefaultTTL. cache may be nil.
func NewManager(repo *Repository, classes ClassFinder, cache *Cache, ttl time.Duration, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		repo:     repo,
		classes:  classes,
		cache:    cache,
		log:      log,
		ttl:      ttl,
		tick:     time.Second,
		now:      time.Now,
		watchers: make(map[string]watcher),
		ctx:      ctx,
		stop:     stop,
	}
}

// Generate deactivates the class's active sessions and starts a new one.
func (m *Manager) Generate(ctx context.Context, teacherID, classID string) (Issued, error) {
	class, err := m.classes.GetClass(ctx, teacherID, classID)
	if err != nil {
		return Issued{}, fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return Issued{}, ErrClassNotFound
	}

	code, err := NewCode()
	if err != nil {
		return Issued{}, fmt.Errorf("session code: %w", err)
	}
	now := m.now().UTC()
	s := Session{
		ID:        uuid.NewString(),
		ClassID:   class.ID,
		TeacherID: teacherID,
		Code:      code,
		ExpiresAt: now.Add(m.ttl),
		Active:    true,
		CreatedAt: now,
	}

	replaced, err := m.repo.Replace(ctx, s)
	if err != nil {
		return Issued{}, fmt.Errorf("create session: %w", err)
	}
	for _, old := range replaced {
		m.dropCache(ctx, old.ID)
		metrics.SessionsEnded.WithLabelValues("replaced").Inc()
	}
	if err := m.cache.Put(ctx, s, now); err != nil {
		m.log.Warn("cache qr session", zap.String("session_id", s.ID), zap.Error(err))
	}
	m.watch(s)
	metrics.SessionsCreated.Inc()
	m.log.Info("qr session started",
		zap.String("session_id", s.ID), zap.String("class_id", s.ClassID), zap.Time("expires_at", s.ExpiresAt))

	return Issued{
		Session: s,
		Payload: Payload{SessionID: s.ID, SessionCode: s.Code, ClassID: class.ID, ClassName: class.Name},
	}, nil
}

// End deactivates a teacher's session. Ending an already inactive session
// succeeds.
func (m *Manager) End(ctx context.Context, teacherID, sessionID string) error {
	s, err := m.repo.ByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s == nil || s.TeacherID != teacherID {
		return ErrSessionNotFound
	}
	changed, err := m.repo.Deactivate(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	m.unwatch(s.ClassID, sessionID)
	m.dropCache(ctx, sessionID)
	if changed {
		metrics.SessionsEnded.WithLabelValues("teacher").Inc()
		m.log.Info("qr session ended", zap.String("session_id", sessionID))
	}
	return nil
}

// Active returns the class's active, unexpired session, or nil.
func (m *Manager) Active(ctx context.Context, teacherID, classID string) (*Issued, error) {
	class, err := m.classes.GetClass(ctx, teacherID, classID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, ErrClassNotFound
	}
	s, err := m.repo.ActiveForClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Expired(m.now()) {
		return nil, nil
	}
	return &Issued{
		Session: *s,
		Payload: Payload{SessionID: s.ID, SessionCode: s.Code, ClassID: class.ID, ClassName: class.Name},
	}, nil
}

// Countdown returns a countdown for s using the manager's clock.
func (m *Manager) Countdown(s Session) Countdown {
	return Countdown{ExpiresAt: s.ExpiresAt, Interval: m.tick, Now: m.now}
}

// Live reports whether sessionID is the class's running session, that is
// neither ended, replaced nor expired.
func (m *Manager) Live(classID, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watchers[classID]
	return ok && w.sessionID == sessionID
}

// Resume starts watchers for sessions left active by a previous process;
// those already past expiry are ended right away.
func (m *Manager) Resume(ctx context.Context) error {
	sessions, err := m.repo.AllActive(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		m.watch(s)
	}
	if len(sessions) > 0 {
		m.log.Info("resumed qr sessions", zap.Int("count", len(sessions)))
	}
	return nil
}

// Close stops all watchers and waits for them to exit.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

func (m *Manager) watch(s Session) {
	ctx, cancel := context.WithCancel(m.ctx)

	m.mu.Lock()
	if prev, ok := m.watchers[s.ClassID]; ok {
		prev.cancel()
	}
	m.watchers[s.ClassID] = watcher{sessionID: s.ID, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		if m.Countdown(s).Run(ctx, nil) {
			m.expire(s)
		}
	}()
}

func (m *Manager) unwatch(classID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.watchers[classID]; ok && w.sessionID == sessionID {
		w.cancel()
		delete(m.watchers, classID)
	}
}

// expire ends a session whose countdown reached zero, once.
func (m *Manager) expire(s Session) {
	ctx, cancel := deadline()
	defer cancel()

	m.mu.Lock()
	if w, ok := m.watchers[s.ClassID]; ok && w.sessionID == s.ID {
		delete(m.watchers, s.ClassID)
	}
	m.mu.Unlock()

	changed, err := m.repo.Deactivate(ctx, s.ID)
	if err != nil {
		m.log.Error("expire qr session", zap.String("session_id", s.ID), zap.Error(err))
		return
	}
	m.dropCache(ctx, s.ID)
	if changed {
		metrics.SessionsEnded.WithLabelValues("expired").Inc()
		m.log.Info("qr session expired", zap.String("session_id", s.ID))
	}
}

func (m *Manager) dropCache(ctx context.Context, id string) {
	if err := m.cache.Delete(ctx, id); err != nil {
		m.log.Warn("evict qr session", zap.String("session_id", id), zap.Error(err))
	}
}

// Package checkin turns a student's QR scan into an attendance record: the
// scan is verified and bound to the student's roster entry, queued, and
// recorded by a consumer.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classroll/internal/attendance"
	"classroll/internal/metrics"
	"classroll/internal/qrsession"
	"classroll/internal/queue"
	"classroll/internal/roster"
)

// MessageType marks check-in messages on the queue.
const MessageType = "checkin"

var (
	ErrNotRostered = errors.New("no student record found for this account")
	ErrNotEnrolled = errors.New("you are not enrolled in this class")
)

// Verifier checks scanned QR text.
type Verifier interface {
	Verify(ctx context.Context, raw string) (qrsession.Session, qrsession.Payload, error)
}

// StudentFinder resolves the roster entries of a student account.
type StudentFinder interface {
	StudentByEmail(ctx context.Context, email string) (*roster.Student, error)
	StudentInClassByEmail(ctx context.Context, email, classID string) (*roster.Student, error)
}

// Recorder stores a check-in.
type Recorder interface {
	Record(ctx context.Context, c attendance.Checkin) (bool, error)
}

// Result is returned to the scanning student.
type Result struct {
	Message   string `json:"message"`
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
}

// Service verifies scans and records check-ins.
type Service struct {
	verifier Verifier
	students StudentFinder
	queue    queue.Queue
	log      *zap.Logger
	now      func() time.Time
}

// NewService wires the check-in service.
func NewService(v Verifier, students StudentFinder, q queue.Queue, log *zap.Logger) *Service {
	return &Service{verifier: v, students: students, queue: q, log: log, now: time.Now}
}

// Scan verifies raw for the student account with this email and queues a
// check-in for today. The row is written by Consume, so a nil error means the
// check-in was accepted, not yet stored.
func (s *Service) Scan(ctx context.Context, email, raw string) (Result, error) {
	res, err := s.scan(ctx, email, raw)
	metrics.Scans.WithLabelValues(resultLabel(err)).Inc()
	return res, err
}

func (s *Service) scan(ctx context.Context, email, raw string) (Result, error) {
	st, err := s.students.StudentByEmail(ctx, email)
	if err != nil {
		return Result{}, fmt.Errorf("roster lookup: %w", err)
	}
	if st == nil {
		return Result{}, ErrNotRostered
	}

	sess, p, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	st, err = s.students.StudentInClassByEmail(ctx, email, sess.ClassID)
	if err != nil {
		return Result{}, fmt.Errorf("roster lookup: %w", err)
	}
	if st == nil {
		s.log.Info("scan for a class the student is not in",
			zap.String("email", email), zap.String("class_id", sess.ClassID))
		return Result{}, ErrNotEnrolled
	}

	c := attendance.Checkin{
		SessionID: sess.ID,
		ClassID:   sess.ClassID,
		StudentID: st.ID,
		TeacherID: sess.TeacherID,
		Date:      s.now().Format(attendance.DateLayout),
	}
	msg, err := queue.NewMessage(MessageType, c)
	if err != nil {
		return Result{}, err
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		return Result{}, fmt.Errorf("queue check-in: %w", err)
	}
	s.log.Info("check-in queued",
		zap.String("student_id", st.ID), zap.String("session_id", sess.ID), zap.String("date", c.Date))

	return Result{
		Message:   "Check-in received",
		ClassID:   sess.ClassID,
		ClassName: p.ClassName,
		SessionID: sess.ID,
		Date:      c.Date,
	}, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, qrsession.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, qrsession.ErrSessionExpired):
		return "expired"
	case errors.Is(err, qrsession.ErrSessionInvalid):
		return "invalid"
	case errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrNotRostered):
		return "not_enrolled"
	default:
		return "error"
	}
}

// Consume records check-ins from q until ctx is done or the queue closes.
// Bad messages and failed writes are logged and dropped.
func Consume(ctx context.Context, q queue.Queue, rec Recorder, log *zap.Logger) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != MessageType {
			log.Warn("unknown queue message", zap.String("type", msg.Type))
			continue
		}
		var c attendance.Checkin
		if err := msg.Decode(&c); err != nil {
			log.Warn("undecodable check-in", zap.Error(err))
			continue
		}
		written, err := rec.Record(ctx, c)
		if err != nil {
			log.Error("record check-in", zap.String("student_id", c.StudentID), zap.Error(err))
			continue
		}
		log.Debug("check-in recorded",
			zap.String("student_id", c.StudentID), zap.String("class_id", c.ClassID), zap.Bool("written", written))
	}
	return ctx.Err()
}

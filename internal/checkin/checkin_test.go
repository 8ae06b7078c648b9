package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classroll/internal/attendance"
	"classroll/internal/qrsession"
	"classroll/internal/queue"
	"classroll/internal/roster"
	"classroll/internal/store/storetest"
)

type fixture struct {
	checkins   *Service
	manager    *qrsession.Manager
	attendance *attendance.Service
	queue      *queue.InMemory
	roster     *roster.Service
	teacher    string
	class      roster.Class
	other      roster.Class
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := storetest.NewDB(t)
	teacher := storetest.SeedUser(t, db, "t@x.edu")

	rosterRepo := roster.NewRepository(db.Client)
	rs := roster.NewService(rosterRepo, zap.NewNop())
	class, err := rs.CreateClass(ctx, teacher, roster.ClassInput{Name: "Biology"})
	require.NoError(t, err)
	other, err := rs.CreateClass(ctx, teacher, roster.ClassInput{Name: "History"})
	require.NoError(t, err)
	_, err = rs.CreateStudent(ctx, teacher, roster.StudentInput{Name: "Jane Doe", Email: "jane@x.edu", StudentID: "S100", ClassID: class.ID})
	require.NoError(t, err)
	_, err = rs.CreateStudent(ctx, teacher, roster.StudentInput{Name: "Sam Roe", Email: "sam@x.edu", StudentID: "S200", ClassID: other.ID})
	require.NoError(t, err)

	sessions := qrsession.NewRepository(db.Client)
	m := qrsession.NewManager(sessions, rosterRepo, nil, time.Minute, zap.NewNop())
	t.Cleanup(m.Close)

	q := queue.NewInMemory(8)
	return &fixture{
		checkins:   NewService(qrsession.NewVerifier(sessions, nil, zap.NewNop()), rosterRepo, q, zap.NewNop()),
		manager:    m,
		attendance: attendance.NewService(attendance.NewRepository(db.Client), rs, rosterRepo, zap.NewNop()),
		queue:      q,
		roster:     rs,
		teacher:    teacher,
		class:      class,
		other:      other,
	}
}

func (f *fixture) payload(t *testing.T, classID string) string {
	t.Helper()
	issued, err := f.manager.Generate(context.Background(), f.teacher, classID)
	require.NoError(t, err)
	raw, err := issued.Payload.Encode()
	require.NoError(t, err)
	return raw
}

func TestScanIsRecordedAsPresent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	done := make(chan error, 1)
	go func() { done <- Consume(ctx, f.queue, f.attendance, zap.NewNop()) }()

	res, err := f.checkins.Scan(ctx, "jane@x.edu", f.payload(t, f.class.ID))
	require.NoError(t, err)
	assert.Equal(t, "Biology", res.ClassName)
	assert.Equal(t, "Check-in received", res.Message)

	require.Eventually(t, func() bool {
		sheet, err := f.attendance.Sheet(ctx, f.teacher, f.class.ID, res.Date)
		if err != nil {
			return false
		}
		for _, st := range sheet.Students {
			if st.Name == "Jane Doe" {
				return sheet.Statuses[st.ID] == attendance.StatusPresent
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestScanBindsStudentIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	raw := f.payload(t, f.class.ID)

	_, err := f.checkins.Scan(ctx, "stranger@x.edu", raw)
	assert.ErrorIs(t, err, ErrNotRostered)

	_, err = f.checkins.Scan(ctx, "sam@x.edu", raw)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = f.checkins.Scan(ctx, "jane@x.edu", "not a qr payload")
	assert.ErrorIs(t, err, qrsession.ErrMalformedPayload)

	assert.Zero(t, f.queue.Pending(), "rejected scans queue nothing")
}

func TestScanUsesTheRosterRowOfTheSessionClass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	// jane is on both rosters; her Biology row is the older one
	inHistory, err := f.roster.CreateStudent(ctx, f.teacher, roster.StudentInput{
		Name: "Jane Doe", Email: "jane@x.edu", StudentID: "S100", ClassID: f.other.ID,
	})
	require.NoError(t, err)

	res, err := f.checkins.Scan(ctx, "Jane@X.edu", f.payload(t, f.other.ID))
	require.NoError(t, err)
	assert.Equal(t, "History", res.ClassName)

	msgs, err := f.queue.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		var c attendance.Checkin
		require.NoError(t, msg.Decode(&c))
		assert.Equal(t, inHistory.ID, c.StudentID)
		assert.Equal(t, f.other.ID, c.ClassID)
	case <-time.After(2 * time.Second):
		t.Fatal("no check-in queued")
	}

	_, err = f.checkins.Scan(ctx, "jane@x.edu", f.payload(t, f.class.ID))
	require.NoError(t, err, "the Biology row still scans")
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "expired", resultLabel(qrsession.ErrSessionExpired))
	assert.Equal(t, "invalid", resultLabel(qrsession.ErrSessionInvalid))
	assert.Equal(t, "not_enrolled", resultLabel(ErrNotEnrolled))
	assert.Equal(t, "error", resultLabel(context.DeadlineExceeded))
}

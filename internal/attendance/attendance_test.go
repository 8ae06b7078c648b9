package attendance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"classroll/internal/roster"
	"classroll/internal/store"
	"classroll/internal/store/storetest"
)

type fixture struct {
	svc      *Service
	db       *store.DB
	teacher  string
	class    roster.Class
	students map[string]roster.Student // by name
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := storetest.NewDB(t)
	teacher := storetest.SeedUser(t, db, "t@x.edu")

	rosterRepo := roster.NewRepository(db.Client)
	rs := roster.NewService(rosterRepo, zap.NewNop())
	class, err := rs.CreateClass(ctx, teacher, roster.ClassInput{Name: "Chemistry", Subject: "Science"})
	require.NoError(t, err)

	students := map[string]roster.Student{}
	for _, in := range []roster.StudentInput{
		{Name: "Alice", Email: "alice@x.edu", StudentID: "S1", ClassID: class.ID},
		{Name: "Bob", Email: "bob@x.edu", StudentID: "S2", ClassID: class.ID},
		{Name: "Carol", StudentID: "S3", ClassID: class.ID},
	} {
		st, err := rs.CreateStudent(ctx, teacher, in)
		require.NoError(t, err)
		students[st.Name] = st
	}

	svc := NewService(NewRepository(db.Client), rs, rosterRepo, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, db: db, teacher: teacher, class: class, students: students}
}

func (f *fixture) id(name string) string { return f.students[name].ID }

func (f *fixture) rowCount(t *testing.T, date string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Client.QueryRow(
		`SELECT COUNT(*) FROM attendance WHERE class_id = $1 AND date = $2`, f.class.ID, date).Scan(&n))
	return n
}

func TestUnmarkedStudentsReloadAsAbsent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{
		f.id("Alice"): {Status: StatusPresent},
		f.id("Bob"):   {Status: StatusLate},
	})
	require.NoError(t, err)

	sheet, err := f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		f.id("Alice"): StatusPresent,
		f.id("Bob"):   StatusLate,
		f.id("Carol"): StatusAbsent,
	}, sheet.Statuses)
	require.Len(t, sheet.Students, 3)
	assert.Equal(t, "Alice", sheet.Students[0].Name)
	assert.Equal(t, 3, f.rowCount(t, "2026-03-02"))
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entries := map[string]Entry{f.id("Alice"): {Status: StatusExcused}, f.id("Carol"): {Status: StatusPresent}}

	first, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-01", entries)
	require.NoError(t, err)
	second, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-01", entries)
	require.NoError(t, err)

	assert.Equal(t, first.Statuses, second.Statuses)
	assert.Equal(t, 3, f.rowCount(t, "2026-03-01"))

	sheet, err := f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, second.Statuses, sheet.Statuses)
}

func TestSaveRejectsBadInputWithoutTouchingRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{f.id("Alice"): {Status: StatusPresent}})
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{"stranger": {Status: StatusPresent}})
	assert.ErrorIs(t, err, ErrUnknownStudent)

	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{f.id("Bob"): {Status: "sick"}})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{
		f.id("Bob"): {Status: StatusExcused, Notes: strings.Repeat("x", MaxNotesLen+1)},
	})
	assert.ErrorIs(t, err, ErrNotesTooLong)

	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "03/02/2026", nil)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.Save(ctx, "someone-else", f.class.ID, "2026-03-02", nil)
	assert.ErrorIs(t, err, roster.ErrClassNotFound)

	sheet, err := f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, sheet.Statuses[f.id("Alice")])
}

func TestNotesAreStoredWithTheStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	saved, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{
		f.id("Alice"): {Status: StatusExcused, Notes: "  doctor visit "},
		f.id("Bob"):   {Notes: "left early"},
		f.id("Carol"): {Status: StatusPresent, Notes: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{f.id("Alice"): "doctor visit", f.id("Bob"): "left early"}, saved.Notes)

	sheet, err := f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, saved.Notes, sheet.Notes)
	assert.Equal(t, StatusExcused, sheet.Statuses[f.id("Alice")])
	assert.Equal(t, StatusAbsent, sheet.Statuses[f.id("Bob")], "a note alone defaults to absent")

	var stored *string
	require.NoError(t, f.db.Client.QueryRow(
		`SELECT notes FROM attendance WHERE student_id = $1 AND date = $2`, f.id("Carol"), "2026-03-02").Scan(&stored))
	assert.Nil(t, stored, "blank notes are stored as NULL")

	// saving the sheet back as loaded keeps the notes
	entries := map[string]Entry{}
	for id, status := range sheet.Statuses {
		entries[id] = Entry{Status: status, Notes: sheet.Notes[id]}
	}
	entries[f.id("Bob")] = Entry{Status: StatusLate, Notes: sheet.Notes[f.id("Bob")]}
	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", entries)
	require.NoError(t, err)

	sheet, err = f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, "doctor visit", sheet.Notes[f.id("Alice")])
	assert.Equal(t, "left early", sheet.Notes[f.id("Bob")])
	assert.Equal(t, StatusLate, sheet.Statuses[f.id("Bob")])

	// a save without notes clears them
	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{f.id("Alice"): {Status: StatusPresent}})
	require.NoError(t, err)
	sheet, err = f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Empty(t, sheet.Notes)
}

func TestSheetDefaultsToToday(t *testing.T) {
	f := newFixture(t)
	sheet, err := f.svc.Sheet(context.Background(), f.teacher, f.class.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", sheet.Date)
	assert.Equal(t, StatusAbsent, sheet.Statuses[f.id("Bob")])
}

func TestRecordCheckin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	checkin := func(name string) Checkin {
		return Checkin{SessionID: "s", ClassID: f.class.ID, StudentID: f.id(name), TeacherID: f.teacher, Date: "2026-03-02"}
	}

	_, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{f.id("Bob"): {Status: StatusLate}})
	require.NoError(t, err)

	written, err := f.svc.Record(ctx, checkin("Alice"))
	require.NoError(t, err)
	assert.True(t, written, "absent is upgraded to present")

	written, err = f.svc.Record(ctx, checkin("Alice"))
	require.NoError(t, err)
	assert.False(t, written, "a repeated scan converges")

	written, err = f.svc.Record(ctx, checkin("Bob"))
	require.NoError(t, err)
	assert.False(t, written, "a teacher's late mark is kept")

	sheet, err := f.svc.Sheet(ctx, f.teacher, f.class.ID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, sheet.Statuses[f.id("Alice")])
	assert.Equal(t, StatusLate, sheet.Statuses[f.id("Bob")])
	assert.Equal(t, 3, f.rowCount(t, "2026-03-02"))

	// no saved sheet for this date yet: the check-in inserts the row
	c := checkin("Carol")
	c.Date = "2026-03-03"
	written, err = f.svc.Record(ctx, c)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 1, f.rowCount(t, "2026-03-03"))
}

func TestDashboardHistoryAndPercentage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for date, status := range map[string]string{
		"2026-02-26": StatusPresent,
		"2026-02-27": StatusLate,
		"2026-03-01": StatusPresent,
	} {
		_, err := f.svc.Save(ctx, f.teacher, f.class.ID, date, map[string]Entry{f.id("Alice"): {Status: status}})
		require.NoError(t, err)
	}

	d, err := f.svc.Dashboard(ctx, "alice@x.edu")
	require.NoError(t, err)
	require.NotNil(t, d.Student)
	assert.Equal(t, "Alice", d.Student.Name)
	require.NotNil(t, d.Class)
	assert.Equal(t, "Chemistry", d.Class.Name)
	require.Len(t, d.Recent, 3)
	assert.Equal(t, "2026-03-01", d.Recent[0].Date)
	assert.Equal(t, "Chemistry", d.Recent[0].ClassName)
	assert.Equal(t, 67, d.Percentage)

	none, err := f.svc.Dashboard(ctx, "nobody@x.edu")
	require.NoError(t, err)
	assert.Nil(t, none.Student)
	assert.Empty(t, none.Recent)
	assert.Zero(t, none.Percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(nil))
	items := []HistoryItem{
		{Record: Record{Status: StatusPresent}},
		{Record: Record{Status: StatusAbsent}},
	}
	assert.Equal(t, 50, Percentage(items))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Save(ctx, f.teacher, f.class.ID, "2026-02-27", map[string]Entry{f.id("Alice"): {Status: StatusPresent}})
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, f.teacher, f.class.ID, "2026-03-02", map[string]Entry{
		f.id("Alice"): {Status: StatusPresent}, f.id("Bob"): {Status: StatusLate, Notes: "bus strike"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, f.teacher, f.class.ID, "2026-02-01", "2026-03-02", &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Name", "Student ID", "Email", "2026-02-27", "2026-03-02", "Present %"}, rows[0])
	assert.Equal(t, []string{"Alice", "S1", "alice@x.edu", "present", "present", "100"}, rows[1])
	assert.Equal(t, []string{"Bob", "S2", "bob@x.edu", "absent", "late", "0"}, rows[2])
	assert.Equal(t, "Carol", rows[3][0])

	err = f.svc.Export(ctx, f.teacher, f.class.ID, "2026-03-05", "2026-03-01", &buf)
	assert.True(t, errors.Is(err, ErrInvalidDate))
}

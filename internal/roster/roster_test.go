package roster

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"classroll/internal/store/storetest"
)

func setup(t *testing.T) (*Service, string) {
	t.Helper()
	db := storetest.NewDB(t)
	teacher := storetest.SeedUser(t, db, "t@x.edu")
	return NewService(NewRepository(db.Client), zap.NewNop()), teacher
}

func TestClassCRUD(t *testing.T) {
	ctx := context.Background()
	svc, teacher := setup(t)

	_, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "X"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr), "name shorter than 2 is rejected")

	_, err = svc.CreateClass(ctx, teacher, ClassInput{Name: "Math", ScheduleDays: []string{"Funday"}})
	assert.True(t, errors.As(err, &verr), "unknown weekday is rejected")

	c, err := svc.CreateClass(ctx, teacher, ClassInput{
		Name: "Algebra", Subject: "Math", ScheduleDays: []string{"Monday", "Wednesday"}, ScheduleTime: "09:30",
	})
	require.NoError(t, err)

	got, err := svc.Class(ctx, teacher, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", got.Name)
	assert.Equal(t, []string{"Monday", "Wednesday"}, got.ScheduleDays)
	require.NotNil(t, got.Subject)
	assert.Equal(t, "Math", *got.Subject)
	assert.Nil(t, got.Room)

	updated, err := svc.UpdateClass(ctx, teacher, c.ID, ClassInput{Name: "Algebra II", Room: "B12"})
	require.NoError(t, err)
	assert.Empty(t, updated.ScheduleDays)

	other := "someone-else"
	_, err = svc.Class(ctx, other, c.ID)
	assert.ErrorIs(t, err, ErrClassNotFound, "classes are scoped to their teacher")

	list, err := svc.Classes(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Algebra II", list[0].Name)

	require.NoError(t, svc.DeleteClass(ctx, teacher, c.ID))
	assert.ErrorIs(t, svc.DeleteClass(ctx, teacher, c.ID), ErrClassNotFound)
}

func TestStudentCRUDAndMatch(t *testing.T) {
	ctx := context.Background()
	svc, teacher := setup(t)
	c, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "Biology"})
	require.NoError(t, err)

	_, err = svc.CreateStudent(ctx, teacher, StudentInput{Name: "Jane Doe", Email: "not-an-email"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.CreateStudent(ctx, teacher, StudentInput{Name: "Jane Doe", ClassID: "missing"})
	assert.ErrorIs(t, err, ErrClassNotFound)

	st, err := svc.CreateStudent(ctx, teacher, StudentInput{Name: "Jane Doe", Email: "jane@x.edu", StudentID: "S100", ClassID: c.ID})
	require.NoError(t, err)

	ok, err := svc.repo.StudentMatches(ctx, "Jane Doe", "jane@x.edu", "S100")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.repo.StudentMatches(ctx, "Jane Doe", "jane@x.edu", "S10")
	require.NoError(t, err)
	assert.False(t, ok)

	_, roster, err := svc.ClassRoster(ctx, teacher, c.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.NotNil(t, roster[0].ClassName)
	assert.Equal(t, "Biology", *roster[0].ClassName)

	byEmail, err := svc.repo.StudentByEmail(ctx, "jane@x.edu")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, st.ID, byEmail.ID)

	moved, err := svc.UpdateStudent(ctx, teacher, st.ID, StudentInput{Name: "Jane Doe", Email: "jane@x.edu"})
	require.NoError(t, err)
	assert.Nil(t, moved.ClassID)

	require.NoError(t, svc.DeleteStudent(ctx, teacher, st.ID))
	_, err = svc.Student(ctx, teacher, st.ID)
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentOnTwoRosters(t *testing.T) {
	ctx := context.Background()
	svc, teacher := setup(t)
	bio, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "Biology"})
	require.NoError(t, err)
	hist, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "History"})
	require.NoError(t, err)
	art, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "Art"})
	require.NoError(t, err)

	inBio, err := svc.CreateStudent(ctx, teacher, StudentInput{Name: "Jane Doe", Email: "Jane@X.edu", StudentID: "S100", ClassID: bio.ID})
	require.NoError(t, err)
	inHist, err := svc.CreateStudent(ctx, teacher, StudentInput{Name: "Jane Doe", Email: "jane@x.edu", StudentID: "S100", ClassID: hist.ID})
	require.NoError(t, err)

	got, err := svc.repo.StudentInClassByEmail(ctx, "jane@x.edu", bio.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inBio.ID, got.ID, "email compares case-insensitively")

	got, err = svc.repo.StudentInClassByEmail(ctx, "JANE@x.edu", hist.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, inHist.ID, got.ID)

	got, err = svc.repo.StudentInClassByEmail(ctx, "jane@x.edu", art.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	first, err := svc.repo.StudentByEmail(ctx, "JANE@X.EDU")
	require.NoError(t, err)
	assert.NotNil(t, first)
}

func TestImportStudents(t *testing.T) {
	ctx := context.Background()
	svc, teacher := setup(t)
	c, err := svc.CreateClass(ctx, teacher, ClassInput{Name: "Chemistry"})
	require.NoError(t, err)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Name", "Email", "Student ID"},
		{"Ada Lovelace", "ada@x.edu", "S1"},
		{"", "ghost@x.edu", "S2"},
		{"Bad Email", "nope", "S3"},
		{"Alan Turing", "", "S4"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	res, err := svc.ImportStudents(ctx, teacher, c.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Problems, 1)

	_, roster, err := svc.ClassRoster(ctx, teacher, c.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Ada Lovelace", roster[0].Name)
	assert.Equal(t, "Alan Turing", roster[1].Name)
	assert.Nil(t, roster[1].Email)

	_, err = svc.ImportStudents(ctx, teacher, c.ID, bytes.NewReader([]byte("not a workbook")))
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

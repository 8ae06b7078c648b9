package attendance

import (
	"time"

	"classroll/internal/roster"
)

// Attendance statuses. Students with no row for a date count as absent.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// DateLayout is the calendar-date format stored in the date column.
const DateLayout = "2006-01-02"

// ValidStatus reports whether s is one of the four statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record is one stored attendance row.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sheet is the attendance editor for one class on one date: the roster in
// name order, a status for every student on it and the notes that were kept.
type Sheet struct {
	Class    roster.Class      `json:"class"`
	Date     string            `json:"date"`
	Students []roster.Student  `json:"students"`
	Statuses map[string]string `json:"statuses"`
	Notes    map[string]string `json:"notes"`
}

// Entry is what the teacher sets for one student when saving a sheet.
type Entry struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// HistoryItem is a record joined with its class, as shown to students.
type HistoryItem struct {
	Record
	ClassName    string  `json:"class_name"`
	ClassSubject *string `json:"class_subject,omitempty"`
}

// Checkin is a QR scan to be recorded as present.
type Checkin struct {
	SessionID string `json:"session_id"`
	ClassID   string `json:"class_id"`
	StudentID string `json:"student_id"`
	TeacherID string `json:"teacher_id"`
	Date      string `json:"date"`
}

// Dashboard is what a signed-in student sees about themselves.
type Dashboard struct {
	Student    *roster.Student `json:"student"`
	Class      *roster.Class   `json:"class,omitempty"`
	Recent     []HistoryItem   `json:"recent"`
	Percentage int             `json:"percentage"`
}

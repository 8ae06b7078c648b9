package roster

import "time"

// Weekdays accepted in a class schedule.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Class is a teacher-owned class.
type Class struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacher_id"`
	Name         string    `json:"name"`
	Subject      *string   `json:"subject,omitempty"`
	Room         *string   `json:"room,omitempty"`
	ScheduleDays []string  `json:"schedule_days,omitempty"`
	ScheduleTime *string   `json:"schedule_time,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is a roster entry. ClassName is joined from classes on list reads.
type Student struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	ClassID   *string   `json:"class_id,omitempty"`
	ClassName *string   `json:"class_name,omitempty"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	StudentID *string   `json:"student_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import "time"

// AttendanceStatus is the presence classification. Only Present is ever stored.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "Present"
	AttendanceStatusAbsent  AttendanceStatus = "Absent"
)

// Attendance is a recorded check-in. Name and groups are copied from the roster when the
// row is written and are not updated afterwards.
type Attendance struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"studentId"`
	StudentName string           `db:"student_name" json:"studentName"`
	ClassName   string           `db:"class_name" json:"className"`
	BusNumber   string           `db:"bus_number" json:"busNumber"`
	Date        string           `db:"date" json:"date"`
	CheckInTime time.Time        `db:"check_in_time" json:"checkInTime"`
	Status      AttendanceStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// AttendanceFilter narrows event listings. Empty fields are ignored.
type AttendanceFilter struct {
	Date      string
	ClassName string
	BusNumber string
}

// InsertResult tags the outcome of an insert-if-absent. When Created is false Attendance
// holds the row that already occupied the (student, date) slot.
type InsertResult struct {
	Created    bool
	Attendance Attendance
}

// CheckInOutcome distinguishes a fresh check-in from a repeated one.
type CheckInOutcome string

const (
	CheckInRecorded        CheckInOutcome = "recorded"
	CheckInAlreadyRecorded CheckInOutcome = "already_recorded"
)

// ScanRequest is the payload posted by a scan station. Date defaults to today.
type ScanRequest struct {
	StudentID string `json:"studentId" validate:"required,max=64"`
	Date      string `json:"date,omitempty"`
}

// CheckInResult is returned for both outcomes of a scan.
type CheckInResult struct {
	Outcome    CheckInOutcome `json:"outcome"`
	Message    string         `json:"message"`
	Attendance Attendance     `json:"attendance"`
}

// Recorded reports whether the scan produced a new event.
func (r CheckInResult) Recorded() bool {
	return r.Outcome == CheckInRecorded
}

// DailyStatus is one roster member's reconciled status for a day.
type DailyStatus struct {
	StudentID   string           `json:"studentId"`
	Name        string           `json:"name"`
	ClassName   string           `json:"className"`
	BusNumber   string           `json:"busNumber"`
	Status      AttendanceStatus `json:"status"`
	CheckInTime *time.Time       `json:"checkInTime"`
	Date        string           `json:"date"`
}

// DailyStatusReport is the full reconciled view for a day.
type DailyStatusReport struct {
	Date     string        `json:"date"`
	Total    int           `json:"total"`
	Present  int           `json:"present"`
	Absent   int           `json:"absent"`
	Students []DailyStatus `json:"students"`
}

// AttendanceListRequest captures query filters for listing recorded events.
type AttendanceListRequest struct {
	Date      string `form:"date"`
	ClassName string `form:"className"`
	BusNumber string `form:"busNumber"`
}

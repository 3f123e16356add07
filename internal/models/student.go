package models

import "time"

// Student is a roster member. StudentID is the printed QR code value and never changes.
type Student struct {
	StudentID string    `db:"student_id" json:"studentId"`
	Name      string    `db:"name" json:"name"`
	ClassName string    `db:"class_name" json:"className"`
	BusNumber string    `db:"bus_number" json:"busNumber"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// CreateStudentRequest registers a new roster member.
type CreateStudentRequest struct {
	StudentID string `json:"studentId" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=255"`
	ClassName string `json:"className" validate:"required,max=64"`
	BusNumber string `json:"busNumber" validate:"required,max=64"`
}

// UpdateStudentRequest replaces the mutable fields of a roster member.
type UpdateStudentRequest struct {
	Name      string `json:"name" validate:"required,max=255"`
	ClassName string `json:"className" validate:"required,max=64"`
	BusNumber string `json:"busNumber" validate:"required,max=64"`
}

// StudentQRCode carries a PNG data URL encoding the student id.
type StudentQRCode struct {
	QRCode    string `json:"qrCode"`
	StudentID string `json:"studentId"`
}

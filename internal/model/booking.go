package model

import "time"

// Booking is a student's reservation of a test date.
type Booking struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	EptID        string    `json:"ept_id"`
	IsRefugee    bool      `json:"is_refugee"`
	HasLaptop    bool      `json:"has_laptop"`
	SelectedDate string    `json:"selected_date"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateBookingRequest is the payload for reserving a test date.
type CreateBookingRequest struct {
	Name                string `json:"name" binding:"required,min=2,max=100"`
	Email               string `json:"email" binding:"required,email,max=254"`
	EptID               string `json:"ept_id" binding:"required,eptid"`
	IsRefugee           bool   `json:"is_refugee"`
	HasLaptop           bool   `json:"has_laptop"`
	SelectedDate        string `json:"selected_date" binding:"required,max=64"`
	ConfirmedAttendance bool   `json:"confirmed_attendance"`
}

// CheckRegistrationRequest looks up a booking by EPT id.
type CheckRegistrationRequest struct {
	EptID string `json:"ept_id" binding:"required,eptid"`
}

// RegistrationStatus is the answer of a registration lookup.
type RegistrationStatus struct {
	HasRegistration bool     `json:"has_registration"`
	Registration    *Booking `json:"registration,omitempty"`
}

// DateCapacity reports seat usage for one regular test date.
type DateCapacity struct {
	Date             string `json:"date"`
	WithLaptop       int    `json:"with_laptop"`
	WithoutLaptop    int    `json:"without_laptop"`
	CapacityLaptop   int    `json:"capacity_with_laptop"`
	CapacityNoLaptop int    `json:"capacity_without_laptop"`
}

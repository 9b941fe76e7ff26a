package model

import "time"

// Student is a test taker identified by the EPT id issued at enrolment.
type Student struct {
	ID        int       `json:"id"`
	EptID     string    `json:"ept_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	EptID string `json:"ept_id" binding:"required,eptid"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

package lab

import (
	"fmt"
	"time"
)

// Status is the lab booking lifecycle. Unlike doctor appointments there is
// no payment step, so a fresh booking starts PENDING.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown lab booking status %q", s)
}

type Lab struct {
	ID          int64
	PublicID    string
	Name        string
	City        *string
	Address     *string
	PhoneNumber *string
}

type Test struct {
	ID       int64
	PublicID string
	Name     string
	Category string
	Price    *float64
}

type Booking struct {
	ID            int64
	PublicID      string
	PatientName   string
	PatientPhone  string
	PatientEmail  *string
	PatientAge    *int
	PatientGender *string
	TestID        int64
	LabID         *int64
	Date          time.Time
	TimeSlot      string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BookingDetail joins the booking with its test and lab for receipts and
// list screens.
type BookingDetail struct {
	Booking
	Test *Test
	Lab  *Lab
}

type TestFilter struct {
	Category string
	Search   string
}

type BookingFilter struct {
	Status Status
	Limit  int
	Offset int
}

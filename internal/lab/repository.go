package lab

import (
	"context"
	"errors"
)

var (
	ErrTestNotFound    = errors.New("lab test not found")
	ErrLabNotFound     = errors.New("lab not found")
	ErrBookingNotFound = errors.New("lab booking not found")

	// ErrPublicIDTaken reports a collision on the generated public id.
	// Callers regenerate and retry.
	ErrPublicIDTaken = errors.New("public id already taken")
)

type Repository interface {
	ListLabs(ctx context.Context, city string) ([]Lab, error)
	ResolveLab(ctx context.Context, publicID string) (*Lab, error)
	ListTests(ctx context.Context, f TestFilter) ([]Test, error)
	ResolveTest(ctx context.Context, publicID string) (*Test, error)
	CreateBooking(ctx context.Context, b *Booking) error
	GetBookingByPublicID(ctx context.Context, publicID string) (*BookingDetail, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, int, error)
	UpdateBookingStatus(ctx context.Context, id int64, status Status) error
}

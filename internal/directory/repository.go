package directory

import (
	"context"
	"errors"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Repository contains the read-side queries behind the directory screens.
type Repository interface {
	SearchDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, int, error)
	GetDoctorByPublicID(ctx context.Context, publicID string) (*Doctor, error)
	ListHospitals(ctx context.Context, city string) ([]Hospital, error)
	ListSpecializations(ctx context.Context) ([]Specialization, error)
	ListIllnesses(ctx context.Context) ([]Illness, error)
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleRow, int, error)
}

package directory

import "context"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Service wraps the directory repository with pagination defaults.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) SearchDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return s.repo.SearchDoctors(ctx, f)
}

func (s *Service) GetDoctor(ctx context.Context, publicID string) (*Doctor, error) {
	return s.repo.GetDoctorByPublicID(ctx, publicID)
}

func (s *Service) ListHospitals(ctx context.Context, city string) ([]Hospital, error) {
	return s.repo.ListHospitals(ctx, city)
}

func (s *Service) ListSpecializations(ctx context.Context) ([]Specialization, error) {
	return s.repo.ListSpecializations(ctx)
}

func (s *Service) ListIllnesses(ctx context.Context) ([]Illness, error) {
	return s.repo.ListIllnesses(ctx)
}

func (s *Service) ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleRow, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return s.repo.ListSchedules(ctx, f)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

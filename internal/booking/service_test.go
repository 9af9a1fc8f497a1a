package booking

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careline/callcenter-booking/internal/availability"
	redisclient "github.com/careline/callcenter-booking/internal/redis"
)

var colombo = time.FixedZone("Asia/Colombo", 5*3600+1800)

// -- In-memory repository --

type memRepo struct {
	doctors   map[string]*DoctorRef
	hospitals map[string]*HospitalRef
	schedules []*availability.ScheduleEntry
	patients  map[int64]*Patient
	appts     map[int64]*Appointment
	nextID    int64

	idClashes int // CreateAppointment fails with ErrPublicIDTaken this many times
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:   make(map[string]*DoctorRef),
		hospitals: make(map[string]*HospitalRef),
		patients:  make(map[int64]*Patient),
		appts:     make(map[int64]*Appointment),
		nextID:    1,
	}
}

func (m *memRepo) ResolveDoctor(_ context.Context, publicID string) (*DoctorRef, error) {
	d, ok := m.doctors[publicID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *memRepo) ResolveHospital(_ context.Context, publicID string) (*HospitalRef, error) {
	h, ok := m.hospitals[publicID]
	if !ok {
		return nil, ErrHospitalNotFound
	}
	return h, nil
}

func (m *memRepo) FindSchedule(_ context.Context, doctorID, hospitalID int64, day time.Weekday) (*availability.ScheduleEntry, error) {
	for _, e := range m.schedules {
		if e.DoctorID == doctorID && e.HospitalID == hospitalID && e.DayOfWeek == day {
			return e, nil
		}
	}
	return nil, ErrScheduleNotFound
}

func (m *memRepo) FindActiveBetween(_ context.Context, doctorID, hospitalID int64, from, to time.Time) ([]availability.Window, error) {
	var out []availability.Window
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.HospitalID != hospitalID || !a.Status.Active() {
			continue
		}
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			out = append(out, availability.Window{Start: a.StartTime, End: a.EndTime})
		}
	}
	return out, nil
}

func (m *memRepo) FindOverlapping(_ context.Context, doctorID int64, start, end time.Time, excludeID int64) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !a.Status.Active() || a.ID == excludeID {
			continue
		}
		if availability.Overlaps(start, end, a.StartTime, a.EndTime) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *memRepo) GetPatientByNIC(_ context.Context, nic string) (*Patient, error) {
	for _, p := range m.patients {
		if p.NIC != nil && *p.NIC == nic {
			return p, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *memRepo) ListPatients(_ context.Context, f PatientFilter) ([]Patient, int, error) {
	var items []Patient
	for _, p := range m.patients {
		if f.Search == "" || strings.Contains(p.Name, f.Search) ||
			strings.Contains(p.PhoneNumber, f.Search) ||
			(p.NIC != nil && strings.Contains(*p.NIC, f.Search)) {
			items = append(items, *p)
		}
	}
	total := len(items)
	if f.Offset > len(items) {
		items = nil
	} else {
		items = items[f.Offset:]
	}
	if f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items, total, nil
}

func (m *memRepo) UpsertPatientByNIC(_ context.Context, details PatientDetails) (*Patient, error) {
	for _, p := range m.patients {
		if p.NIC != nil && *p.NIC == details.NIC {
			p.Name = details.Name
			p.PhoneNumber = details.PhoneNumber
			p.Email = details.Email
			return p, nil
		}
	}
	nic := details.NIC
	p := &Patient{
		ID:          m.nextID,
		Name:        details.Name,
		PhoneNumber: details.PhoneNumber,
		Email:       details.Email,
		NIC:         &nic,
	}
	m.nextID++
	m.patients[p.ID] = p
	return p, nil
}

func (m *memRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	if m.idClashes > 0 {
		m.idClashes--
		return nil, ErrPublicIDTaken
	}
	cp := *a
	cp.ID = m.nextID
	m.nextID++
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.appts[cp.ID] = &cp
	return &cp, nil
}

func (m *memRepo) GetByPublicID(_ context.Context, publicID string) (*Appointment, error) {
	for _, a := range m.appts {
		if a.PublicID == publicID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) GetDetailByPublicID(ctx context.Context, publicID string) (*AppointmentDetail, error) {
	a, err := m.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	detail := &AppointmentDetail{Appointment: *a}
	detail.Patient = m.patients[a.PatientID]
	for _, d := range m.doctors {
		if d.ID == a.DoctorID {
			detail.Doctor = d
		}
	}
	for _, h := range m.hospitals {
		if h.ID == a.HospitalID {
			detail.Hospital = h
		}
	}
	return detail, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id int64, from, to Status) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (m *memRepo) CancelByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok || a.Status == StatusCancelled {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	cp := *a
	return &cp, nil
}

func (m *memRepo) Reschedule(_ context.Context, id int64, start, end time.Time, doctorID, hospitalID int64) (*Appointment, error) {
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.StartTime = start
	a.EndTime = end
	a.DoctorID = doctorID
	a.HospitalID = hospitalID
	cp := *a
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]AppointmentDetail, int, error) {
	var out []AppointmentDetail
	for _, a := range m.appts {
		out = append(out, AppointmentDetail{Appointment: *a})
	}
	return out, len(out), nil
}

func (m *memRepo) CompleteFinished(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, a := range m.appts {
		if a.Status == StatusConfirmed && !a.EndTime.After(now) {
			a.Status = StatusCompleted
			n++
		}
	}
	return n, nil
}

// -- Fakes --

type passLocker struct{ calls int }

func (l *passLocker) WithDoctorLock(ctx context.Context, _ int64, fn func(ctx context.Context) error) error {
	l.calls++
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithDoctorLock(context.Context, int64, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type recordMailer struct {
	sent []string
	err  error
}

func (m *recordMailer) SendAppointmentConfirmation(_ context.Context, d *AppointmentDetail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, d.PublicID)
	return nil
}

// -- Fixture --

// Sunday June 2 2030 with a 14:00-17:00 schedule for DOC-001 at HOSP-001.
var (
	testNow    = time.Date(2030, time.June, 1, 10, 0, 0, 0, colombo)
	testSunday = time.Date(2030, time.June, 2, 0, 0, 0, 0, colombo)
)

func fixtureRepo() *memRepo {
	repo := newMemRepo()
	repo.doctors["DOC-001"] = &DoctorRef{ID: 10, PublicID: "DOC-001", Name: "Dr. Anura Silva"}
	repo.hospitals["HOSP-001"] = &HospitalRef{ID: 20, PublicID: "HOSP-001", Name: "Nawaloka Hospital"}
	repo.schedules = append(repo.schedules, &availability.ScheduleEntry{
		ScheduleID: 1,
		DoctorID:   10,
		HospitalID: 20,
		DayOfWeek:  time.Sunday,
		Start:      availability.TimeOfDay{Hour: 14},
		End:        availability.TimeOfDay{Hour: 17},
	})
	return repo
}

func newTestService(repo *memRepo, mailer Mailer) *Service {
	return NewService(repo, &passLocker{}, mailer, colombo).WithClock(func() time.Time { return testNow })
}

func sundayAt(hhmm string) time.Time {
	var h, m int
	fmt.Sscanf(hhmm, "%d:%d", &h, &m)
	return time.Date(2030, time.June, 2, h, m, 0, 0, colombo)
}

func guestInput(start time.Time) BookingInput {
	return BookingInput{
		DoctorPublicID:   "DOC-001",
		HospitalPublicID: "HOSP-001",
		StartTime:        start,
		PatientDetails: &PatientDetails{
			Name:        "Nimal Jayasuriya",
			PhoneNumber: "0771234567",
			NIC:         "902541123V",
		},
	}
}

// -- Tests --

func TestAvailabilityNotScheduled(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)

	monday := testSunday.AddDate(0, 0, 1)
	day, err := svc.Availability(context.Background(), "DOC-001", "HOSP-001", monday)
	require.NoError(t, err)

	assert.False(t, day.Scheduled)
	assert.Empty(t, day.Slots)
}

func TestAvailabilityUnknownDoctor(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)

	_, err := svc.Availability(context.Background(), "DOC-999", "HOSP-001", testSunday)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestAvailabilityFullSheet(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)

	day, err := svc.Availability(context.Background(), "DOC-001", "HOSP-001", testSunday)
	require.NoError(t, err)
	require.True(t, day.Scheduled)
	require.Len(t, day.Slots, 18)

	for _, s := range day.Slots {
		assert.Equal(t, availability.SlotAvailable, s.Status)
	}
}

func TestBookThenSlotReserved(t *testing.T) {
	repo := fixtureRepo()
	mailer := &recordMailer{}
	svc := newTestService(repo, mailer)

	appt, err := svc.Book(context.Background(), guestInput(sundayAt("14:30")))
	require.NoError(t, err)

	assert.Equal(t, StatusPendingPayment, appt.Status)
	assert.Equal(t, sundayAt("14:40"), appt.EndTime)
	assert.Regexp(t, `^APT-\d{6}$`, appt.PublicID)
	require.NotNil(t, appt.PaymentLink)
	assert.Equal(t, []string{appt.PublicID}, mailer.sent)

	day, err := svc.Availability(context.Background(), "DOC-001", "HOSP-001", testSunday)
	require.NoError(t, err)

	for _, s := range day.Slots {
		want := availability.SlotAvailable
		if s.Start.Equal(sundayAt("14:30")) {
			want = availability.SlotReserved
		}
		assert.Equal(t, want, s.Status, "slot at %s", s.Start)
	}
}

func TestBookOverlapRejected(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)

	_, err := svc.Book(context.Background(), guestInput(sundayAt("14:30")))
	require.NoError(t, err)

	// 14:25-14:35 straddles the existing 14:30-14:40 appointment.
	_, err = svc.Book(context.Background(), guestInput(sundayAt("14:25")))
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBookValidation(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	ctx := context.Background()

	_, err := svc.Book(ctx, guestInput(testNow.Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrPastTime)

	// Monday has no schedule.
	_, err = svc.Book(ctx, guestInput(sundayAt("14:30").AddDate(0, 0, 1)))
	assert.ErrorIs(t, err, ErrNotScheduled)

	// 13:55 starts before the 14:00 window opens.
	_, err = svc.Book(ctx, guestInput(sundayAt("13:55")))
	assert.ErrorIs(t, err, ErrOutsideSchedule)

	// 16:55 + 10 minutes overhangs the 17:00 close.
	_, err = svc.Book(ctx, guestInput(sundayAt("16:55")))
	assert.ErrorIs(t, err, ErrOutsideSchedule)

	in := guestInput(sundayAt("14:30"))
	in.PatientDetails = nil
	_, err = svc.Book(ctx, in)
	assert.ErrorIs(t, err, ErrPatientRequired)
}

func TestBookRetriesPublicIDCollision(t *testing.T) {
	repo := fixtureRepo()
	repo.idClashes = 2
	svc := newTestService(repo, nil)

	appt, err := svc.Book(context.Background(), guestInput(sundayAt("14:00")))
	require.NoError(t, err)
	assert.Zero(t, repo.idClashes)
	assert.Regexp(t, `^APT-\d{6}$`, appt.PublicID)

	repo.idClashes = 10
	other := guestInput(sundayAt("15:00"))
	other.PatientDetails.NIC = "851234567V"
	_, err = svc.Book(context.Background(), other)
	assert.ErrorIs(t, err, ErrPublicIDTaken)
}

func TestBookDoctorBusy(t *testing.T) {
	svc := NewService(fixtureRepo(), busyLocker{}, nil, colombo).
		WithClock(func() time.Time { return testNow })

	_, err := svc.Book(context.Background(), guestInput(sundayAt("14:30")))
	assert.ErrorIs(t, err, ErrDoctorBusy)
}

func TestBookMailFailureIsNonFatal(t *testing.T) {
	mailer := &recordMailer{err: fmt.Errorf("smtp down")}
	svc := newTestService(fixtureRepo(), mailer)

	appt, err := svc.Book(context.Background(), guestInput(sundayAt("14:30")))
	require.NoError(t, err)
	assert.NotNil(t, appt)
}

func TestBookReusesPatientByNIC(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	first, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)
	second, err := svc.Book(ctx, guestInput(sundayAt("15:00")))
	require.NoError(t, err)

	assert.Equal(t, first.PatientID, second.PatientID)
	assert.Len(t, repo.patients, 1)
}

func TestPatientDirectory(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)
	other := guestInput(sundayAt("15:00"))
	other.PatientDetails.Name = "Sunethra Bandara"
	other.PatientDetails.NIC = "851234567V"
	_, err = svc.Book(ctx, other)
	require.NoError(t, err)

	items, total, err := svc.ListPatients(ctx, PatientFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	items, total, err = svc.ListPatients(ctx, PatientFilter{Search: "851234567V"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Sunethra Bandara", items[0].Name)

	found, err := svc.GetPatientByNIC(ctx, "902541123V")
	require.NoError(t, err)
	assert.Equal(t, "Nimal Jayasuriya", found.Name)

	_, err = svc.GetPatientByNIC(ctx, "000000000V")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestCancelReleasesSlot(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:30")))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, appt.PublicID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Cancel(ctx, appt.PublicID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	// The exact same window books cleanly again.
	rebooked, err := svc.Book(ctx, guestInput(sundayAt("14:30")))
	require.NoError(t, err)
	assert.NotEqual(t, appt.PublicID, rebooked.PublicID)

	day, err := svc.Availability(ctx, "DOC-001", "HOSP-001", testSunday)
	require.NoError(t, err)
	for _, s := range day.Slots {
		if s.Start.Equal(sundayAt("14:30")) {
			assert.Equal(t, availability.SlotReserved, s.Status)
		}
	}
}

func TestRescheduleSelfExclusion(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)

	// 14:05-14:15 collides only with the appointment's own old window.
	moved, err := svc.Reschedule(ctx, appt.PublicID, RescheduleInput{
		StartTime: sundayAt("14:05"),
		EndTime:   sundayAt("14:15"),
	})
	require.NoError(t, err)
	assert.Equal(t, sundayAt("14:05"), moved.StartTime)
	assert.Equal(t, appt.Status, moved.Status, "reschedule preserves status")
}

func TestRescheduleConflictWithOther(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	first, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)

	other := guestInput(sundayAt("15:00"))
	other.PatientDetails.NIC = "851234567V"
	_, err = svc.Book(ctx, other)
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, first.PublicID, RescheduleInput{
		StartTime: sundayAt("14:55"),
		EndTime:   sundayAt("15:05"),
	})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestRescheduleValidation(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, appt.PublicID, RescheduleInput{
		StartTime: sundayAt("14:30"),
		EndTime:   sundayAt("14:30"),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.Reschedule(ctx, appt.PublicID, RescheduleInput{
		StartTime: testNow.Add(-2 * time.Hour),
		EndTime:   testNow.Add(-110 * time.Minute),
	})
	assert.ErrorIs(t, err, ErrPastTime)

	_, err = svc.Reschedule(ctx, "APT-000000", RescheduleInput{
		StartTime: sundayAt("14:30"),
		EndTime:   sundayAt("14:40"),
	})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRescheduleCancelledRefused(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, appt.PublicID)
	require.NoError(t, err)

	_, err = svc.Reschedule(ctx, appt.PublicID, RescheduleInput{
		StartTime: sundayAt("14:30"),
		EndTime:   sundayAt("14:40"),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConfirmPayment(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)

	confirmed, err := svc.ConfirmPayment(ctx, appt.PublicID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	_, err = svc.ConfirmPayment(ctx, appt.PublicID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompletePastAppointments(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	appt, err := svc.Book(ctx, guestInput(sundayAt("14:00")))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, appt.PublicID)
	require.NoError(t, err)

	// Move the clock past the appointment's end.
	svc.WithClock(func() time.Time { return sundayAt("18:00") })

	n, err := svc.CompletePastAppointments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	done, err := svc.Get(ctx, appt.PublicID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestBookManyPartialConflict(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	// Occupy 14:20 so the middle slot of the bulk request fails.
	_, err := svc.Book(ctx, guestInput(sundayAt("14:20")))
	require.NoError(t, err)

	result, err := svc.BookMany(ctx, BulkBookingInput{
		DoctorPublicID:   "DOC-001",
		HospitalPublicID: "HOSP-001",
		StartTimes:       []time.Time{sundayAt("14:00"), sundayAt("14:20"), sundayAt("14:40")},
		PatientDetails: &PatientDetails{
			Name:        "Kamala Fernando",
			PhoneNumber: "0719876543",
			NIC:         "885120456V",
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Booked, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, sundayAt("14:20"), result.Failed[0].StartTime)
	assert.ErrorIs(t, result.Failed[0].Err, ErrSlotConflict)

	// Both successes belong to the same patient record.
	assert.Equal(t, result.Booked[0].PatientID, result.Booked[1].PatientID)
}

func TestBookManyRequiresSlots(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	_, err := svc.BookMany(context.Background(), BulkBookingInput{
		DoctorPublicID:   "DOC-001",
		HospitalPublicID: "HOSP-001",
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

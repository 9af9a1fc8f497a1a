package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careline/callcenter-booking/internal/availability"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

const appointmentColumns = `appointment_id, public_id, patient_id, doctor_id, hospital_id,
	start_time, end_time, status, payment_link, payment_confirmation_code, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PublicID,
		&a.PatientID,
		&a.DoctorID,
		&a.HospitalID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.PaymentLink,
		&a.PaymentConfirmationCode,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.Email,
		&p.NIC,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

// timeOfDay converts a Postgres TIME column value to the engine's
// date-free representation.
func timeOfDay(t pgtype.Time) availability.TimeOfDay {
	minutes := int(t.Microseconds / 60_000_000)
	return availability.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Interface methods

func (r *PgRepository) ResolveDoctor(ctx context.Context, publicID string) (*DoctorRef, error) {
	var d DoctorRef
	err := r.pool.QueryRow(ctx, `
		SELECT doctor_id, public_id, name
		FROM doctors
		WHERE public_id = $1
	`, publicID).Scan(&d.ID, &d.PublicID, &d.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) ResolveHospital(ctx context.Context, publicID string) (*HospitalRef, error) {
	var h HospitalRef
	err := r.pool.QueryRow(ctx, `
		SELECT hospital_id, public_id, name, city
		FROM hospitals
		WHERE public_id = $1
	`, publicID).Scan(&h.ID, &h.PublicID, &h.Name, &h.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *PgRepository) FindSchedule(ctx context.Context, doctorID, hospitalID int64, day time.Weekday) (*availability.ScheduleEntry, error) {
	var (
		entry      availability.ScheduleEntry
		dow        int16
		start, end pgtype.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT schedule_id, doctor_id, hospital_id, day_of_week, start_time, end_time, valid_from, valid_until
		FROM doctor_schedules
		WHERE doctor_id = $1 AND hospital_id = $2 AND day_of_week = $3
		ORDER BY start_time
		LIMIT 1
	`, doctorID, hospitalID, int(day)).Scan(
		&entry.ScheduleID,
		&entry.DoctorID,
		&entry.HospitalID,
		&dow,
		&start,
		&end,
		&entry.ValidFrom,
		&entry.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	entry.DayOfWeek = time.Weekday(dow)
	entry.Start = timeOfDay(start)
	entry.End = timeOfDay(end)
	return &entry, nil
}

func (r *PgRepository) FindActiveBetween(ctx context.Context, doctorID, hospitalID int64, from, to time.Time) ([]availability.Window, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND hospital_id = $2
		  AND start_time >= $3
		  AND start_time < $4
		  AND status <> 'cancelled'
		ORDER BY start_time
	`, doctorID, hospitalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []availability.Window
	for rows.Next() {
		var w availability.Window
		if err := rows.Scan(&w.Start, &w.End); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (r *PgRepository) FindOverlapping(ctx context.Context, doctorID int64, start, end time.Time, excludeID int64) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		  AND ($4 = 0 OR appointment_id <> $4)
	`, doctorID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT patient_id, name, phone_number, email, nic, created_at, updated_at
		FROM patients
		WHERE patient_id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByNIC(ctx context.Context, nic string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT patient_id, name, phone_number, email, nic, created_at, updated_at
		FROM patients
		WHERE nic = $1
	`, nic)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context, f PatientFilter) ([]Patient, int, error) {
	where := ""
	var args []any
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = `WHERE name ILIKE $1 OR phone_number LIKE $1 OR email ILIKE $1 OR nic ILIKE $1`
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT patient_id, name, phone_number, email, nic, created_at, updated_at
		FROM patients
		%s
		ORDER BY created_at DESC
		LIMIT %d OFFSET %d
	`, where, f.Limit, f.Offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Patient
	for rows.Next() {
		var p Patient
		err := rows.Scan(&p.ID, &p.Name, &p.PhoneNumber, &p.Email, &p.NIC, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM patients %s`, where), args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// UpsertPatientByNIC inserts or refreshes a patient keyed by national id
// in one statement, so concurrent bookings for the same patient cannot
// create duplicates.
func (r *PgRepository) UpsertPatientByNIC(ctx context.Context, details PatientDetails) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (name, phone_number, email, nic, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (nic) DO UPDATE
		SET name = EXCLUDED.name,
		    phone_number = EXCLUDED.phone_number,
		    email = EXCLUDED.email,
		    updated_at = now()
		RETURNING patient_id, name, phone_number, email, nic, created_at, updated_at
	`, details.Name, details.PhoneNumber, details.Email, details.NIC)
	return scanPatient(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(public_id, patient_id, doctor_id, hospital_id, start_time, end_time, status, payment_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.PublicID, a.PatientID, a.DoctorID, a.HospitalID, a.StartTime, a.EndTime, a.Status, a.PaymentLink)

	created, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrSlotTaken
		}
		// The only unique index on appointments is public_id.
		if isUniqueViolation(err) {
			return nil, ErrPublicIDTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByPublicID(ctx context.Context, publicID string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE public_id = $1
	`, publicID)
	return scanAppointment(row)
}

func (r *PgRepository) GetDetailByPublicID(ctx context.Context, publicID string) (*AppointmentDetail, error) {
	appt, err := r.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, appt)
}

func (r *PgRepository) hydrate(ctx context.Context, appt *Appointment) (*AppointmentDetail, error) {
	detail := &AppointmentDetail{Appointment: *appt}

	patient, err := r.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}
	detail.Patient = patient

	var d DoctorRef
	err = r.pool.QueryRow(ctx,
		`SELECT doctor_id, public_id, name FROM doctors WHERE doctor_id = $1`,
		appt.DoctorID).Scan(&d.ID, &d.PublicID, &d.Name)
	if err != nil {
		return nil, err
	}
	detail.Doctor = &d

	var h HospitalRef
	err = r.pool.QueryRow(ctx,
		`SELECT hospital_id, public_id, name, city FROM hospitals WHERE hospital_id = $1`,
		appt.HospitalID).Scan(&h.ID, &h.PublicID, &h.Name, &h.City)
	if err != nil {
		return nil, err
	}
	detail.Hospital = &h

	return detail, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id int64, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) CancelByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status <> 'cancelled'
		RETURNING `+appointmentColumns+`
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, id int64, start, end time.Time, doctorID, hospitalID int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    doctor_id = $4,
		    hospital_id = $5,
		    updated_at = now()
		WHERE appointment_id = $1
		RETURNING `+appointmentColumns+`
	`, id, start, end, doctorID, hospitalID)

	updated, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]AppointmentDetail, int, error) {
	where, args := r.buildListWhere(f)

	order := "a.start_time ASC"
	if f.ViewMode == ViewPrevious {
		order = "a.start_time DESC"
	}

	query := fmt.Sprintf(`
		SELECT a.appointment_id, a.public_id, a.patient_id, a.doctor_id, a.hospital_id,
		       a.start_time, a.end_time, a.status, a.payment_link, a.payment_confirmation_code,
		       a.created_at, a.updated_at,
		       p.patient_id, p.name, p.phone_number, p.email, p.nic, p.created_at, p.updated_at,
		       d.doctor_id, d.public_id, d.name,
		       h.hospital_id, h.public_id, h.name, h.city
		FROM appointments a
		JOIN patients p ON p.patient_id = a.patient_id
		JOIN doctors d ON d.doctor_id = a.doctor_id
		JOIN hospitals h ON h.hospital_id = a.hospital_id
		%s
		ORDER BY %s
		LIMIT %d OFFSET %d
	`, where, order, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []AppointmentDetail
	for rows.Next() {
		var (
			item AppointmentDetail
			p    Patient
			d    DoctorRef
			h    HospitalRef
		)
		err := rows.Scan(
			&item.ID, &item.PublicID, &item.PatientID, &item.DoctorID, &item.HospitalID,
			&item.StartTime, &item.EndTime, &item.Status, &item.PaymentLink, &item.PaymentConfirmationCode,
			&item.CreatedAt, &item.UpdatedAt,
			&p.ID, &p.Name, &p.PhoneNumber, &p.Email, &p.NIC, &p.CreatedAt, &p.UpdatedAt,
			&d.ID, &d.PublicID, &d.Name,
			&h.ID, &h.PublicID, &h.Name, &h.City,
		)
		if err != nil {
			return nil, 0, err
		}
		item.Patient = &p
		item.Doctor = &d
		item.Hospital = &h
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf(`
		SELECT count(*)
		FROM appointments a
		JOIN patients p ON p.patient_id = a.patient_id
		JOIN doctors d ON d.doctor_id = a.doctor_id
		JOIN hospitals h ON h.hospital_id = a.hospital_id
		%s
	`, where)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *PgRepository) buildListWhere(f ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Date != nil {
		dayStart, dayEnd := availability.DayBounds(*f.Date, r.loc)
		conds = append(conds, fmt.Sprintf("a.start_time >= %s AND a.start_time < %s", arg(dayStart), arg(dayEnd)))
	}
	if !f.Now.IsZero() {
		switch f.ViewMode {
		case ViewPrevious:
			conds = append(conds, fmt.Sprintf("a.start_time < %s", arg(f.Now)))
		case ViewCurrent:
			conds = append(conds, fmt.Sprintf("a.end_time >= %s", arg(f.Now)))
		}
	}
	if f.DoctorPublicID != "" {
		conds = append(conds, fmt.Sprintf("d.public_id = %s", arg(f.DoctorPublicID)))
	}
	if f.HospitalPublicID != "" {
		conds = append(conds, fmt.Sprintf("h.public_id = %s", arg(f.HospitalPublicID)))
	}
	if f.PublicID != "" {
		conds = append(conds, fmt.Sprintf("a.public_id = %s", arg(f.PublicID)))
	}
	if f.PatientSearch != "" {
		pattern := arg("%" + f.PatientSearch + "%")
		conds = append(conds, fmt.Sprintf(
			"(p.name ILIKE %[1]s OR p.phone_number LIKE %[1]s OR p.email ILIKE %[1]s OR p.nic ILIKE %[1]s)",
			pattern))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *PgRepository) CompleteFinished(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE status = 'confirmed'
		  AND end_time <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

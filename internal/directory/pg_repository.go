package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careline/callcenter-booking/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func timeOfDay(t pgtype.Time) availability.TimeOfDay {
	minutes := int(t.Microseconds / 60_000_000)
	return availability.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

func (r *PgRepository) SearchDoctors(ctx context.Context, f DoctorFilter) ([]Doctor, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Name != "" {
		conds = append(conds, fmt.Sprintf("d.name ILIKE %s", arg("%"+f.Name+"%")))
	}
	if f.SpecializationID != 0 {
		conds = append(conds, fmt.Sprintf("d.specialization_id = %s", arg(f.SpecializationID)))
	}
	if f.Illness != "" {
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM illness_specialization_map m
			WHERE m.specialization_id = d.specialization_id
			  AND m.illness_name ILIKE %s
		)`, arg("%"+f.Illness+"%")))
	}
	if f.HospitalPublicID != "" || f.City != "" {
		var hospConds []string
		if f.HospitalPublicID != "" {
			hospConds = append(hospConds, fmt.Sprintf("h.public_id = %s", arg(f.HospitalPublicID)))
		}
		if f.City != "" {
			hospConds = append(hospConds, fmt.Sprintf("h.city ILIKE %s", arg(f.City)))
		}
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM doctor_schedules ds
			JOIN hospitals h ON h.hospital_id = ds.hospital_id
			WHERE ds.doctor_id = d.doctor_id AND %s
		)`, strings.Join(hospConds, " AND ")))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT d.doctor_id, d.public_id, d.name, d.profile_description, d.consultant_fee,
		       s.specialization_id, s.name
		FROM doctors d
		LEFT JOIN specializations s ON s.specialization_id = d.specialization_id
		%s
		ORDER BY d.name
		LIMIT %d OFFSET %d
	`, where, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range doctors {
		schedules, err := r.doctorSchedules(ctx, doctors[i].ID)
		if err != nil {
			return nil, 0, err
		}
		doctors[i].Schedules = schedules
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM doctors d %s`, where)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return doctors, total, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d        Doctor
		specID   *int64
		specName *string
	)
	err := row.Scan(&d.ID, &d.PublicID, &d.Name, &d.ProfileDescription, &d.ConsultantFee, &specID, &specName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if specID != nil && specName != nil {
		d.Specialization = &Specialization{ID: *specID, Name: *specName}
	}
	return &d, nil
}

func (r *PgRepository) GetDoctorByPublicID(ctx context.Context, publicID string) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT d.doctor_id, d.public_id, d.name, d.profile_description, d.consultant_fee,
		       s.specialization_id, s.name
		FROM doctors d
		LEFT JOIN specializations s ON s.specialization_id = d.specialization_id
		WHERE d.public_id = $1
	`, publicID)

	d, err := scanDoctor(row)
	if err != nil {
		return nil, err
	}

	schedules, err := r.doctorSchedules(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	d.Schedules = schedules
	return d, nil
}

func (r *PgRepository) doctorSchedules(ctx context.Context, doctorID int64) ([]DoctorSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ds.schedule_id, ds.day_of_week, ds.start_time, ds.end_time,
		       h.hospital_id, h.public_id, h.name, h.city, h.address, h.phone_number
		FROM doctor_schedules ds
		JOIN hospitals h ON h.hospital_id = ds.hospital_id
		WHERE ds.doctor_id = $1
		ORDER BY ds.day_of_week, ds.start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []DoctorSchedule
	for rows.Next() {
		var (
			s          DoctorSchedule
			dow        int16
			start, end pgtype.Time
		)
		err := rows.Scan(
			&s.ScheduleID, &dow, &start, &end,
			&s.Hospital.ID, &s.Hospital.PublicID, &s.Hospital.Name,
			&s.Hospital.City, &s.Hospital.Address, &s.Hospital.PhoneNumber,
		)
		if err != nil {
			return nil, err
		}
		s.DayOfWeek = time.Weekday(dow)
		s.Start = timeOfDay(start)
		s.End = timeOfDay(end)
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *PgRepository) ListHospitals(ctx context.Context, city string) ([]Hospital, error) {
	query := `
		SELECT hospital_id, public_id, name, city, address, phone_number
		FROM hospitals
	`
	var args []any
	if city != "" {
		query += ` WHERE city ILIKE $1`
		args = append(args, city)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hospitals []Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(&h.ID, &h.PublicID, &h.Name, &h.City, &h.Address, &h.PhoneNumber); err != nil {
			return nil, err
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

func (r *PgRepository) ListSpecializations(ctx context.Context) ([]Specialization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT specialization_id, name
		FROM specializations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []Specialization
	for rows.Next() {
		var s Specialization
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, rows.Err()
}

func (r *PgRepository) ListIllnesses(ctx context.Context) ([]Illness, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, illness_name, specialization_id
		FROM illness_specialization_map
		ORDER BY illness_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var illnesses []Illness
	for rows.Next() {
		var i Illness
		if err := rows.Scan(&i.ID, &i.Name, &i.SpecializationID); err != nil {
			return nil, err
		}
		illnesses = append(illnesses, i)
	}
	return illnesses, rows.Err()
}

func (r *PgRepository) ListSchedules(ctx context.Context, f ScheduleFilter) ([]ScheduleRow, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.DoctorPublicID != "" {
		conds = append(conds, fmt.Sprintf("d.public_id = %s", arg(f.DoctorPublicID)))
	}
	if f.HospitalPublicID != "" {
		conds = append(conds, fmt.Sprintf("h.public_id = %s", arg(f.HospitalPublicID)))
	}
	if f.SpecializationID != 0 {
		conds = append(conds, fmt.Sprintf("d.specialization_id = %s", arg(f.SpecializationID)))
	}
	if f.DayOfWeek != nil {
		conds = append(conds, fmt.Sprintf("ds.day_of_week = %s", arg(int(*f.DayOfWeek))))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	base := fmt.Sprintf(`
		FROM doctor_schedules ds
		JOIN doctors d ON d.doctor_id = ds.doctor_id
		JOIN hospitals h ON h.hospital_id = ds.hospital_id
		LEFT JOIN specializations s ON s.specialization_id = d.specialization_id
		%s
	`, where)

	query := fmt.Sprintf(`
		SELECT ds.schedule_id, ds.day_of_week, ds.start_time, ds.end_time,
		       d.doctor_id, d.public_id, d.name, d.profile_description, d.consultant_fee,
		       s.specialization_id, s.name,
		       h.hospital_id, h.public_id, h.name, h.city, h.address, h.phone_number
		%s
		ORDER BY ds.day_of_week, ds.start_time
		LIMIT %d OFFSET %d
	`, base, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []ScheduleRow
	for rows.Next() {
		var (
			row        ScheduleRow
			dow        int16
			start, end pgtype.Time
			specID     *int64
			specName   *string
		)
		err := rows.Scan(
			&row.ScheduleID, &dow, &start, &end,
			&row.Doctor.ID, &row.Doctor.PublicID, &row.Doctor.Name,
			&row.Doctor.ProfileDescription, &row.Doctor.ConsultantFee,
			&specID, &specName,
			&row.Hospital.ID, &row.Hospital.PublicID, &row.Hospital.Name,
			&row.Hospital.City, &row.Hospital.Address, &row.Hospital.PhoneNumber,
		)
		if err != nil {
			return nil, 0, err
		}
		if specID != nil && specName != nil {
			row.Doctor.Specialization = &Specialization{ID: *specID, Name: *specName}
		}
		row.DayOfWeek = time.Weekday(dow)
		row.Start = timeOfDay(start)
		row.End = timeOfDay(end)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

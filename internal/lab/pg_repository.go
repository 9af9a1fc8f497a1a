package lab

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) ListLabs(ctx context.Context, city string) ([]Lab, error) {
	query := `SELECT lab_id, public_id, name, city, address, phone_number FROM labs`
	args := []any{}
	if city != "" {
		query += ` WHERE city ILIKE $1`
		args = append(args, city)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list labs: %w", err)
	}
	defer rows.Close()

	var labs []Lab
	for rows.Next() {
		var l Lab
		if err := rows.Scan(&l.ID, &l.PublicID, &l.Name, &l.City, &l.Address, &l.PhoneNumber); err != nil {
			return nil, err
		}
		labs = append(labs, l)
	}
	return labs, rows.Err()
}

func (r *PgRepository) ResolveLab(ctx context.Context, publicID string) (*Lab, error) {
	var l Lab
	err := r.pool.QueryRow(ctx,
		`SELECT lab_id, public_id, name, city, address, phone_number FROM labs WHERE public_id = $1`,
		publicID).Scan(&l.ID, &l.PublicID, &l.Name, &l.City, &l.Address, &l.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLabNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PgRepository) ListTests(ctx context.Context, f TestFilter) ([]Test, error) {
	conditions := []string{"1=1"}
	args := []any{}

	if f.Category != "" {
		args = append(args, f.Category)
		conditions = append(conditions, fmt.Sprintf("category ILIKE $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := `SELECT lab_test_id, public_id, name, category, price FROM lab_tests WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY category, name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lab tests: %w", err)
	}
	defer rows.Close()

	var tests []Test
	for rows.Next() {
		var t Test
		if err := rows.Scan(&t.ID, &t.PublicID, &t.Name, &t.Category, &t.Price); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (r *PgRepository) ResolveTest(ctx context.Context, publicID string) (*Test, error) {
	var t Test
	err := r.pool.QueryRow(ctx,
		`SELECT lab_test_id, public_id, name, category, price FROM lab_tests WHERE public_id = $1`,
		publicID).Scan(&t.ID, &t.PublicID, &t.Name, &t.Category, &t.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO lab_bookings (public_id, patient_name, patient_phone, patient_email,
			patient_age, patient_gender, lab_test_id, lab_id, booking_date, booking_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING lab_booking_id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.PublicID, b.PatientName, b.PatientPhone, b.PatientEmail,
		b.PatientAge, b.PatientGender, b.TestID, b.LabID, b.Date, b.TimeSlot, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		// The only unique index on lab_bookings is public_id.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPublicIDTaken
		}
		return fmt.Errorf("insert lab booking: %w", err)
	}
	return nil
}

const bookingDetailQuery = `
	SELECT b.lab_booking_id, b.public_id, b.patient_name, b.patient_phone, b.patient_email,
		b.patient_age, b.patient_gender, b.lab_test_id, b.lab_id, b.booking_date, b.booking_time,
		b.status, b.created_at, b.updated_at,
		t.lab_test_id, t.public_id, t.name, t.category, t.price,
		l.lab_id, l.public_id, l.name, l.city, l.address, l.phone_number
	FROM lab_bookings b
	JOIN lab_tests t ON t.lab_test_id = b.lab_test_id
	LEFT JOIN labs l ON l.lab_id = b.lab_id`

func scanBookingDetail(row pgx.Row) (*BookingDetail, error) {
	var (
		d    BookingDetail
		test Test
		lab  struct {
			id          *int64
			publicID    *string
			name        *string
			city        *string
			address     *string
			phoneNumber *string
		}
	)

	err := row.Scan(
		&d.ID, &d.PublicID, &d.PatientName, &d.PatientPhone, &d.PatientEmail,
		&d.PatientAge, &d.PatientGender, &d.TestID, &d.LabID, &d.Date, &d.TimeSlot,
		&d.Status, &d.CreatedAt, &d.UpdatedAt,
		&test.ID, &test.PublicID, &test.Name, &test.Category, &test.Price,
		&lab.id, &lab.publicID, &lab.name, &lab.city, &lab.address, &lab.phoneNumber,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	d.Test = &test
	if lab.id != nil {
		d.Lab = &Lab{
			ID:          *lab.id,
			PublicID:    *lab.publicID,
			Name:        *lab.name,
			City:        lab.city,
			Address:     lab.address,
			PhoneNumber: lab.phoneNumber,
		}
	}
	return &d, nil
}

func (r *PgRepository) GetBookingByPublicID(ctx context.Context, publicID string) (*BookingDetail, error) {
	return scanBookingDetail(r.pool.QueryRow(ctx, bookingDetailQuery+` WHERE b.public_id = $1`, publicID))
}

func (r *PgRepository) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = ` WHERE b.status = $1`
		args = append(args, f.Status)
	}

	var total int
	countQuery := `SELECT count(*) FROM lab_bookings b` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lab bookings: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := bookingDetailQuery + where +
		fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list lab bookings: %w", err)
	}
	defer rows.Close()

	var bookings []BookingDetail
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *d)
	}
	return bookings, total, rows.Err()
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lab_bookings SET status = $2, updated_at = now() WHERE lab_booking_id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update lab booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

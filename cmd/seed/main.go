package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/careline/callcenter-booking/internal/config"
	"github.com/careline/callcenter-booking/internal/db"
	"github.com/careline/callcenter-booking/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("seed", cfg.Env)
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()
	if err := seedDirectory(seedCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("seed directory")
	}
	if err := seedUsers(seedCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("seed users")
	}
	if err := seedLabs(seedCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("seed labs")
	}
	if err := seedPatients(seedCtx, pool, 200); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

// seedDirectory loads the specializations, illness map, hospitals, doctors
// and weekly schedules the booking flow needs.
func seedDirectory(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	specializations := []string{
		"Cardiology",
		"Dermatology",
		"Pediatrics",
		"Orthopedics",
		"General Physician (GP)",
	}
	specIDs := make(map[string]int64, len(specializations))
	for _, name := range specializations {
		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO specializations (name) VALUES ($1) RETURNING specialization_id`,
			name).Scan(&id)
		if err != nil {
			return err
		}
		specIDs[name] = id
	}

	illnesses := map[string]string{
		"Chest Pain":          "Cardiology",
		"High Blood Pressure": "Cardiology",
		"Skin Rash":           "Dermatology",
		"Acne":                "Dermatology",
		"Fever (Child)":       "Pediatrics",
		"Knee Pain":           "Orthopedics",
		"Common Cold":         "General Physician (GP)",
	}
	for illness, spec := range illnesses {
		_, err := tx.Exec(ctx,
			`INSERT INTO illness_specialization_map (illness_name, specialization_id) VALUES ($1, $2)`,
			illness, specIDs[spec])
		if err != nil {
			return err
		}
	}

	hospitals := []struct {
		publicID string
		name     string
		city     string
		address  string
		phone    string
	}{
		{"HOSP-001", "Nawaloka Hospital", "Colombo", "23, Deshamanya H K Dharmadasa Mw", "0115577111"},
		{"HOSP-002", "Lanka Hospitals", "Colombo", "578 Elvitigala Mawatha", "0115430000"},
		{"HOSP-003", "Suwasewana Hospital", "Kandy", "532 Peradeniya Rd", "0812222222"},
	}
	hospIDs := make(map[string]int64, len(hospitals))
	for _, h := range hospitals {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO hospitals (public_id, name, city, address, phone_number)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING hospital_id`,
			h.publicID, h.name, h.city, h.address, h.phone).Scan(&id)
		if err != nil {
			return err
		}
		hospIDs[h.publicID] = id
	}

	doctors := []struct {
		publicID string
		name     string
		spec     string
		profile  string
		fee      float64
	}{
		{"DOC-001", "Dr. Anura Silva", "Cardiology", "Senior Cardiologist with 15 years experience.", 2500},
		{"DOC-002", "Dr. Kamini Perera", "Dermatology", "Specialist in cosmetic dermatology.", 1800},
		{"DOC-003", "Dr. Nalin Fernando", "Pediatrics", "Consultant Pediatrician.", 2000},
	}
	docIDs := make(map[string]int64, len(doctors))
	for _, d := range doctors {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO doctors (public_id, name, specialization_id, profile_description, consultant_fee)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING doctor_id`,
			d.publicID, d.name, specIDs[d.spec], d.profile, d.fee).Scan(&id)
		if err != nil {
			return err
		}
		docIDs[d.publicID] = id
	}

	schedules := []struct {
		doctor   string
		hospital string
		day      int
		start    string
		end      string
	}{
		{"DOC-001", "HOSP-001", 0, "14:00", "17:00"}, // Dr. Silva, Sundays at Nawaloka
		{"DOC-001", "HOSP-002", 1, "09:00", "12:00"}, // Dr. Silva, Mondays at Lanka
		{"DOC-002", "HOSP-001", 2, "16:00", "19:00"},
		{"DOC-003", "HOSP-003", 6, "08:00", "11:00"},
	}
	for _, s := range schedules {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_schedules (doctor_id, hospital_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5)`,
			docIDs[s.doctor], hospIDs[s.hospital], s.day, s.start, s.end)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().Msg("directory seeded")
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []struct {
		name  string
		email string
		role  string
	}{
		{"Call Center Agent 1", "agent@careline.lk", "CALL_AGENT"},
		{"System Admin", "admin@careline.lk", "ADMIN"},
		{"Call Center Super Admin", "superadmin@careline.lk", "SUPER_ADMIN"},
	}
	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO call_center_users (name, email, password_hash, role, status)
			VALUES ($1, $2, $3, $4, 'active')`,
			u.name, u.email, string(hash), u.role)
		if err != nil {
			return err
		}
		log.Info().Str("email", u.email).Str("role", u.role).Msg("user seeded, password is password123")
	}
	return nil
}

func seedLabs(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO labs (public_id, name, city, address, phone_number)
		VALUES ('LABSITE-001', 'City Central Lab', 'Colombo', '123 Main Street, Colombo 03', '0112233445')`)
	if err != nil {
		return err
	}

	tests := []struct {
		publicID string
		name     string
		category string
		price    float64
	}{
		{"CP-001", "Urine Full Report", "Clinical Pathology", 450},
		{"CP-002", "Stool Analysis", "Clinical Pathology", 500},
		{"HEM-001", "Full Blood Count (FBC/CBC)", "Hematology", 850},
		{"HEM-002", "Dengue NS1 Antigen", "Hematology", 1800},
		{"BIO-001", "Lipid Profile", "Biochemistry", 1500},
		{"BIO-002", "Liver Function Test (LFT)", "Biochemistry", 1200},
		{"BIO-003", "Kidney Function Test (KFT)", "Biochemistry", 1300},
		{"BIO-004", "Fasting Blood Sugar (FBS)", "Biochemistry", 400},
		{"MIC-001", "Urine Culture & Sensitivity", "Microbiology", 1200},
		{"IMM-001", "Thyroid Profile (TSH, T3, T4)", "Immunology & Serology", 3500},
		{"CYT-001", "Pap Smear", "Cytology", 1600},
	}
	for _, t := range tests {
		_, err := tx.Exec(ctx, `
			INSERT INTO lab_tests (public_id, name, category, price)
			VALUES ($1, $2, $3, $4)`,
			t.publicID, t.name, t.category, t.price)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().Int("tests", len(tests)).Msg("labs seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		phone := fmt.Sprintf("07%d%07d", gofakeit.Number(0, 8), gofakeit.Number(0, 9999999))
		email := gofakeit.Email()
		nic := fmt.Sprintf("%09dV", gofakeit.Number(100000000, 999999999))

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (name, phone_number, email, nic)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (nic) DO NOTHING`,
			name, phone, email, nic)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Info().Int("count", count).Msg("patients seeded")
	return nil
}

// Package mail sends patient-facing notification emails over SMTP. All
// senders are best-effort by contract; callers log failures and move on.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/careline/callcenter-booking/internal/booking"
	"github.com/careline/callcenter-booking/internal/config"
	"github.com/careline/callcenter-booking/internal/lab"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Sender covers every notification the platform produces.
type Sender interface {
	booking.Mailer
	lab.Mailer
}

// New returns an SMTP sender, or a no-op one when SMTP_HOST is unset.
func New(cfg config.Config) (Sender, error) {
	if cfg.SMTPHost == "" {
		return Noop{}, nil
	}
	return NewSMTP(cfg)
}

// Noop drops every message. Used in dev and in tests.
type Noop struct{}

func (Noop) SendAppointmentConfirmation(context.Context, *booking.AppointmentDetail) error {
	return nil
}

func (Noop) SendLabBookingReceipt(context.Context, *lab.BookingDetail) error {
	return nil
}

// SMTP delivers mail through a configured relay using go-mail.
type SMTP struct {
	client *gomail.Client
	from   string
	loc    *time.Location
}

func NewSMTP(cfg config.Config) (*SMTP, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUser),
			gomail.WithPassword(cfg.SMTPPass),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTP{client: client, from: cfg.MailFrom, loc: cfg.Location()}, nil
}

type appointmentEmail struct {
	PatientName  string
	PublicID     string
	DoctorName   string
	HospitalName string
	Date         string
	StartTime    string
	EndTime      string
	PaymentLink  string
}

func (s *SMTP) SendAppointmentConfirmation(ctx context.Context, d *booking.AppointmentDetail) error {
	if d.Patient == nil || d.Patient.Email == nil {
		return nil
	}

	data := appointmentEmail{
		PatientName: d.Patient.Name,
		PublicID:    d.PublicID,
		Date:        d.StartTime.In(s.loc).Format("Monday, 2 January 2006"),
		StartTime:   d.StartTime.In(s.loc).Format("15:04"),
		EndTime:     d.EndTime.In(s.loc).Format("15:04"),
	}
	if d.Doctor != nil {
		data.DoctorName = d.Doctor.Name
	}
	if d.Hospital != nil {
		data.HospitalName = d.Hospital.Name
	}
	if d.PaymentLink != nil {
		data.PaymentLink = *d.PaymentLink
	}

	subject := fmt.Sprintf("Appointment %s confirmed", d.PublicID)
	return s.send(ctx, *d.Patient.Email, subject, "appointment_confirmation.html", data)
}

type labEmail struct {
	PatientName string
	PublicID    string
	TestName    string
	LabName     string
	Date        string
	TimeSlot    string
}

func (s *SMTP) SendLabBookingReceipt(ctx context.Context, d *lab.BookingDetail) error {
	if d.PatientEmail == nil {
		return nil
	}

	data := labEmail{
		PatientName: d.PatientName,
		PublicID:    d.PublicID,
		Date:        d.Date.In(s.loc).Format("Monday, 2 January 2006"),
		TimeSlot:    d.TimeSlot,
	}
	if d.Test != nil {
		data.TestName = d.Test.Name
	}
	if d.Lab != nil {
		data.LabName = d.Lab.Name
	}

	subject := fmt.Sprintf("Lab booking %s received", d.PublicID)
	return s.send(ctx, *d.PatientEmail, subject, "lab_receipt.html", data)
}

func (s *SMTP) send(ctx context.Context, to, subject, tmpl string, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body.String())

	return s.client.DialAndSendWithContext(ctx, msg)
}

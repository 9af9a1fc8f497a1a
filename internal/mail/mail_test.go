package mail

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentTemplateRenders(t *testing.T) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "appointment_confirmation.html", appointmentEmail{
		PatientName:  "Nimal Perera",
		PublicID:     "APT-123456",
		DoctorName:   "Dr. Anura Silva",
		HospitalName: "Nawaloka Hospital",
		Date:         "Sunday, 2 June 2030",
		StartTime:    "14:00",
		EndTime:      "14:10",
		PaymentLink:  "https://pay.gateway.lk/pay/abc",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "APT-123456")
	assert.Contains(t, buf.String(), "Pay now")
}

func TestAppointmentTemplateHidesPaymentWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "appointment_confirmation.html", appointmentEmail{
		PatientName: "Nimal Perera",
		PublicID:    "APT-123456",
	})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Pay now")
}

func TestLabTemplateRenders(t *testing.T) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "lab_receipt.html", labEmail{
		PatientName: "Kamala Fernando",
		PublicID:    "LAB-654321",
		TestName:    "Full Blood Count",
		Date:        "Monday, 3 June 2030",
		TimeSlot:    "09:30",
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "LAB-654321")
	assert.NotContains(t, buf.String(), "Laboratory")
}

func TestNoopSenderAcceptsEverything(t *testing.T) {
	var s Sender = Noop{}
	assert.NoError(t, s.SendAppointmentConfirmation(context.Background(), nil))
	assert.NoError(t, s.SendLabBookingReceipt(context.Background(), nil))
}

package services

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/spf13/viper"

	"github.com/carlink/backend/internal/models"
)

// MailService sends booking notifications through SendGrid. Sends are
// fire-and-forget: a delivery failure is logged, never surfaced to the
// transition that triggered it.
type MailService struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func NewMailService() *MailService {
	viper.SetDefault("sendgrid.from_name", "CarLink")
	viper.SetDefault("sendgrid.from_email", "no-reply@carlink.vn")

	apiKey := viper.GetString("sendgrid.api_key")
	if apiKey == "" {
		log.Println("[MAIL] SENDGRID_API_KEY not set, notifications disabled")
		return nil
	}

	return &MailService{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  viper.GetString("sendgrid.from_name"),
		fromEmail: viper.GetString("sendgrid.from_email"),
	}
}

func (ms *MailService) send(toEmail, subject, body string) {
	if ms == nil || toEmail == "" {
		return
	}

	from := mail.NewEmail(ms.fromName, ms.fromEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	resp, err := ms.client.Send(message)
	if err != nil {
		log.Printf("[MAIL] Send failed to=%s subject=%q: %v", toEmail, subject, err)
		return
	}
	if resp.StatusCode >= 400 {
		log.Printf("[MAIL] Send rejected to=%s subject=%q status=%d", toEmail, subject, resp.StatusCode)
	}
}

// BookingConfirmed notifies the customer that the deposit is held and the
// booking is confirmed.
func (ms *MailService) BookingConfirmed(toEmail, carName string, b models.Booking) {
	ms.send(toEmail,
		"Your booking is confirmed",
		fmt.Sprintf("Your booking #%d for %s from %s to %s is confirmed. The deposit has been held from your wallet.",
			b.ID, carName, b.StartDateTime.Format("2006-01-02 15:04"), b.EndDateTime.Format("2006-01-02 15:04")))
}

// BookingCancelled notifies the customer that the booking was cancelled and
// the deposit refunded.
func (ms *MailService) BookingCancelled(toEmail, carName string, b models.Booking) {
	ms.send(toEmail,
		"Your booking was cancelled",
		fmt.Sprintf("Your booking #%d for %s has been cancelled. The deposit has been refunded to your wallet.", b.ID, carName))
}

// BookingReturned notifies the customer of the final settlement after return.
func (ms *MailService) BookingReturned(toEmail, carName string, b models.Booking, settled bool) {
	outcome := "Your booking is complete."
	if !settled {
		outcome = "An outstanding balance remains, please settle it from your wallet."
	}
	ms.send(toEmail,
		"Car returned",
		fmt.Sprintf("The return of %s for booking #%d has been recorded. %s", carName, b.ID, outcome))
}

package email

import (
	"fmt"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender handles sending notification emails via SendGrid. All sends are
// fire-and-forget: failures are logged, never propagated.
type Sender struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

// NewSender creates a new email sender
func NewSender(apiKey, fromName, fromEmail string) *Sender {
	return &Sender{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// SendWelcomeEmail notifies a newly registered citizen.
func (s *Sender) SendWelcomeEmail(recipientEmail, name string) {
	plainText := fmt.Sprintf(`Hello %s,

Your account has been created. You can now submit civic issue reports
and track their progress.

Best regards,
The Civic Reports Team`, name)

	s.send(recipientEmail, "Welcome to Civic Reports", plainText)
}

// SendOTPEmail sends a one-time code for registration verification.
func (s *Sender) SendOTPEmail(recipientEmail, code string) {
	plainText := fmt.Sprintf(`Hello,

Your verification code is: %s

This code will expire in 10 minutes. If you did not request it, please
ignore this email.

Best regards,
The Civic Reports Team`, code)

	s.send(recipientEmail, "Your Civic Reports verification code", plainText)
}

// SendStatusEmail notifies the reporter of a status change on their report.
func (s *Sender) SendStatusEmail(recipientEmail string, reportSeq int64, status string) {
	plainText := fmt.Sprintf(`Hello,

Your report #%d was updated to status %q.

Best regards,
The Civic Reports Team`, reportSeq, status)

	s.send(recipientEmail, fmt.Sprintf("Report #%d update", reportSeq), plainText)
}

func (s *Sender) send(recipient, subject, plainText string) {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(recipient, recipient)
	message := mail.NewSingleEmail(from, subject, to, plainText, "")

	response, err := s.client.Send(message)
	if err != nil {
		log.Warnf("Error sending email to %s: %v", recipient, err)
		return
	}
	if response.StatusCode >= 400 {
		log.Warnf("SendGrid returned %d sending to %s", response.StatusCode, recipient)
		return
	}
	log.Infof("Sent %q email to %s", subject, recipient)
}

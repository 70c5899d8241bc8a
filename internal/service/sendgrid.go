package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"carrental-backend/internal/logger"
)

type sendGridClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type sendGridEmailService struct {
	client    sendGridClient
	fromEmail string
	fromName  string
}

func NewSendGridEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &sendGridEmailService{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridEmailService) SendCancellationNotice(ctx context.Context, email, name, bookingNumber, carName, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.ExternalServiceCall("sendgrid", "SendCancellationNotice", "to", email, "bookingNumber", bookingNumber)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail(name, email)
	plainText := cancellationBody(name, bookingNumber, carName, reason)
	message := mail.NewSingleEmail(from, cancellationSubject(bookingNumber), recipient, plainText, "")

	response, err := s.client.Send(message)
	if err != nil {
		err = fmt.Errorf("failed to send email: %w", err)
		logger.ExternalServiceResult("sendgrid", "SendCancellationNotice", err, "to", email)
		return err
	}
	if response.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
		logger.ExternalServiceResult("sendgrid", "SendCancellationNotice", err, "to", email)
		return err
	}

	logger.ExternalServiceResult("sendgrid", "SendCancellationNotice", nil, "to", email, "status", response.StatusCode)
	return nil
}

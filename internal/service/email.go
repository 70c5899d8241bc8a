package service

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"carrental-backend/internal/config"
	"carrental-backend/internal/logger"
)

type emailService struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

func NewEmailService(host string, port int, username, password, from, fromName string) EmailService {
	return &emailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

// NewEmailServiceFromConfig selects the SMTP or SendGrid sender.
func NewEmailServiceFromConfig(cfg config.SMTPConfig) EmailService {
	if cfg.Provider == config.EmailProviderSendGrid {
		return NewSendGridEmailService(cfg.SendGridAPIKey, cfg.From, cfg.FromName)
	}
	return NewEmailService(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.From, cfg.FromName)
}

func cancellationSubject(bookingNumber string) string {
	return fmt.Sprintf("Booking %s has been cancelled", bookingNumber)
}

func cancellationBody(name, bookingNumber, carName, reason string) string {
	body := fmt.Sprintf("Hello %s,\n\nYour booking %s", name, bookingNumber)
	if carName != "" {
		body += fmt.Sprintf(" for %s", carName)
	}
	body += " has been cancelled."
	if reason != "" {
		body += fmt.Sprintf("\n\nReason: %s", reason)
	}
	body += "\n\nBest regards,\nThe Car Rental Team"
	return body
}

func (s *emailService) cancellationMessage(email, name, bookingNumber, carName, reason string) *gomail.Message {
	m := gomail.NewMessage()
	if s.fromName != "" {
		m.SetAddressHeader("From", s.from, s.fromName)
	} else {
		m.SetHeader("From", s.from)
	}
	m.SetHeader("To", email)
	m.SetHeader("Subject", cancellationSubject(bookingNumber))
	m.SetBody("text/plain", cancellationBody(name, bookingNumber, carName, reason))
	return m
}

func (s *emailService) SendCancellationNotice(ctx context.Context, email, name, bookingNumber, carName, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.ExternalServiceCall("smtp", "SendCancellationNotice", "to", email, "bookingNumber", bookingNumber)

	m := s.cancellationMessage(email, name, bookingNumber, carName, reason)
	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	if err := d.DialAndSend(m); err != nil {
		err = fmt.Errorf("failed to send cancellation notice via gomail: %w", err)
		logger.ExternalServiceResult("smtp", "SendCancellationNotice", err, "to", email)
		return err
	}

	logger.ExternalServiceResult("smtp", "SendCancellationNotice", nil, "to", email)
	return nil
}

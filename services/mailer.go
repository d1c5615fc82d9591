package services

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"mail-dispatcher/config"

	mail "gopkg.in/gomail.v2"
)

// SMTPSender delivers rendered messages through an SMTP relay.
type SMTPSender struct {
	host          string
	port          int
	authUser      string
	authPass      string
	fromEmail     string
	skipTLSVerify bool
}

// NewSMTPSender creates a sender from the MAILHUB configuration.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	parts := strings.Split(cfg.MailHub, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid MAILHUB format: %s. Expected host:port", cfg.MailHub)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid port in MAILHUB: %w", err)
	}

	return &SMTPSender{
		host:          parts[0],
		port:          port,
		authUser:      cfg.AuthUser,
		authPass:      cfg.AuthPass,
		fromEmail:     cfg.FromEmail,
		skipTLSVerify: cfg.SkipTLSVerify,
	}, nil
}

// Send delivers one HTML message to one address. The display name is set on
// the From header in front of the configured source address.
func (s *SMTPSender) Send(displayName, toAddress, subject, htmlBody string) error {
	m := mail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, displayName)
	m.SetHeader("To", toAddress)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := mail.NewDialer(s.host, s.port, s.authUser, s.authPass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.host,
		InsecureSkipVerify: s.skipTLSVerify,
	}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}
	return nil
}

// Package notify turns payment reminder events into e-mails.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"loan-manager/internal/config"
	"loan-manager/internal/event"

	"github.com/jordan-wright/email"
)

type ReminderSender interface {
	SendPaymentReminder(ctx context.Context, evt event.PaymentReminderEvent) error
}

type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger.With("component", "SMTPMailer")}
}

func (m *SMTPMailer) SendPaymentReminder(ctx context.Context, evt event.PaymentReminderEvent) error {
	e := composeReminder(m.cfg.From, evt)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := e.Send(addr, auth); err != nil {
		m.logger.ErrorContext(ctx, "Failed to send payment reminder", "to", evt.CustomerEmail, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.InfoContext(ctx, "Payment reminder sent", "to", evt.CustomerEmail, "loanID", evt.LoanID, "paymentID", evt.PaymentID)
	return nil
}

func composeReminder(from string, evt event.PaymentReminderEvent) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{evt.CustomerEmail}
	e.Subject = fmt.Sprintf("Interest payment due on %s", evt.DueDate.Format(time.DateOnly))

	var body strings.Builder
	fmt.Fprintf(&body, "Dear %s,\n\n", evt.CustomerName)
	fmt.Fprintf(&body, "This is a reminder that an interest payment of %.2f is due on %s.\n",
		evt.Amount, evt.DueDate.Format(time.DateOnly))
	if evt.Frequency != "" {
		fmt.Fprintf(&body, "Interest on this loan is charged %s.\n", evt.Frequency)
	}
	fmt.Fprintf(&body, "Loan reference: %s\n", evt.LoanID)
	body.WriteString("\nBest regards,\nLoan Manager")
	e.Text = []byte(body.String())
	return e
}

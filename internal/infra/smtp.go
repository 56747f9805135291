package infra

import (
	"fmt"
	"net/smtp"

	"moneycase/internal/config"
	"moneycase/internal/dto"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending Z-reports with the PDF attached.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled is false when no SMTP host is configured.
func (m *Mailer) Enabled() bool { return m != nil && m.host != "" }

// SendZReport mails the snapshot summary to `to` with the PDF at pdfPath attached.
func (m *Mailer) SendZReport(to string, snap *dto.ZReportSnapshot, pdfPath string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Z-report %s / %s (%s)",
		snap.RestaurantName, snap.BranchName, snap.ClosedAt.Format("2006-01-02 15:04"))
	e.Text = []byte(zReportBody(snap))

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}

func zReportBody(snap *dto.ZReportSnapshot) string {
	return fmt.Sprintf(
		"Session %s closed by %s.\n\nExpected: %s %s\nCounted:  %s %s\nDifference: %s %s (%s, %s)\n",
		snap.SessionID, snap.ClosedBy,
		snap.ExpectedTotal.StringFixed(2), snap.Currency,
		snap.ActualCash.StringFixed(2), snap.Currency,
		snap.Discrepancy.StringFixed(2), snap.Currency,
		snap.Classification, snap.Grade,
	)
}

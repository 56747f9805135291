package worker

// zreport_worker.go
// Processes QueueZReport: renders the closed session's Z-report to
// PDF_STORAGE_PATH and mails it to REPORT_EMAIL_TO when SMTP is configured.

import (
	"context"
	"encoding/json"
	"fmt"

	"moneycase/internal/dto"
	"moneycase/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SnapshotSource is the slice of the reporting facade the worker needs.
type SnapshotSource interface {
	ZReport(ctx context.Context, sessionID uuid.UUID) (*dto.ZReportSnapshot, error)
}

// ReportMailer sends a rendered Z-report.
type ReportMailer interface {
	Enabled() bool
	SendZReport(to string, snap *dto.ZReportSnapshot, pdfPath string) error
}

type ZReportWorker struct {
	reports     SnapshotSource
	mailer      ReportMailer
	storagePath string
	mailTo      string
	// render is swapped in tests
	render func(snap *dto.ZReportSnapshot, storagePath string) (string, error)
}

// NewZReportWorker builds the handler. mailer may be nil and mailTo empty,
// in which case reports are only written to disk.
func NewZReportWorker(reports SnapshotSource, mailer ReportMailer, storagePath, mailTo string) *ZReportWorker {
	return &ZReportWorker{
		reports:     reports,
		mailer:      mailer,
		storagePath: storagePath,
		mailTo:      mailTo,
		render:      infra.WriteZReportPDF,
	}
}

// Process implements Handler.
func (w *ZReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job ZReportJob
	if err := json.Unmarshal(raw, &job); err != nil || job.SessionID == uuid.Nil {
		// permanent: dropped without retry
		log.Error().Err(err).Msg("zreport_worker: invalid payload")
		return nil
	}

	snap, err := w.reports.ZReport(ctx, job.SessionID)
	if err != nil {
		return fmt.Errorf("zreport_worker: build snapshot %s: %w", job.SessionID, err)
	}

	path, err := w.render(snap, w.storagePath)
	if err != nil {
		return fmt.Errorf("zreport_worker: render %s: %w", job.SessionID, err)
	}
	log.Info().Str("session_id", snap.SessionID).Str("path", path).Msg("zreport_worker: pdf written")

	if w.mailTo == "" || w.mailer == nil || !w.mailer.Enabled() {
		return nil
	}
	if err := w.mailer.SendZReport(w.mailTo, snap, path); err != nil {
		return fmt.Errorf("zreport_worker: mail %s: %w", job.SessionID, err)
	}
	log.Info().Str("session_id", snap.SessionID).Str("to", w.mailTo).Msg("zreport_worker: z-report mailed")
	return nil
}

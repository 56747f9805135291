package infra

// pdf.go renders Z-reports as receipt-sized PDFs with go-pdf/fpdf.
// Layout (74mm × 130mm):
//   - Restaurant and branch header
//   - Session id, operators and open/close times in the branch time zone
//   - Expected breakdown (subtotal, service fee, total)
//   - Counted cash and the signed discrepancy with its classification
//   - Counts and closing notes

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"moneycase/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

const receiptTimeLayout = "02/01/2006  15:04"

// RenderZReportPDF returns the PDF bytes of a Z-report snapshot.
func RenderZReportPDF(snap *dto.ZReportSnapshot) ([]byte, error) {
	pdf := buildZReport(snap)
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render z-report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteZReportPDF writes the Z-report to storagePath/zreport_{session}.pdf
// (directory created if needed) and returns the file path.
func WriteZReportPDF(snap *dto.ZReportSnapshot, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("zreport_%s.pdf", snap.SessionID))

	pdf := buildZReport(snap)
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func buildZReport(snap *dto.ZReportSnapshot) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: 130},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(true, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8
	labelW := contentW * 0.58
	valueW := contentW - labelW

	separator := func() {
		pdf.Ln(1)
		pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
		pdf.Ln(2)
	}
	row := func(label, value string) {
		pdf.CellFormat(labelW, 4.5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 4.5, tr(value), "", 1, "R", false, 0, "")
	}
	money := func(d decimal.Decimal) string {
		return d.StringFixed(2) + " " + snap.Currency
	}

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6, tr(snap.RestaurantName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, tr(snap.BranchName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, "Z-REPORT", "", 1, "C", false, 0, "")
	separator()

	// ── Session ──────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Session "+snap.SessionID, "", 1, "L", false, 0, "")
	row("Opened", snap.OpenedAt.Format(receiptTimeLayout))
	row("Opened by", snap.OpenedBy)
	row("Closed", snap.ClosedAt.Format(receiptTimeLayout))
	row("Closed by", snap.ClosedBy)
	row("Duration", (time.Duration(snap.DurationSecs) * time.Second).String())
	row("Time zone", snap.Timezone)
	separator()

	// ── Expected ─────────────────────────────────────────────────────────────
	row("Opening balance", money(snap.OpeningBalance))
	row("Sales subtotal", money(snap.ExpectedSubtotal))
	row("Service fee", money(snap.ExpectedServiceFee))
	pdf.SetFont("Helvetica", "B", 8)
	row("Expected total", money(snap.ExpectedTotal))
	separator()

	// ── Counted ──────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	row("Counted cash", money(snap.ActualCash))
	pdf.SetFont("Helvetica", "B", 9)
	sign := ""
	if snap.Discrepancy.IsPositive() {
		sign = "+"
	}
	row("Difference", sign+money(snap.Discrepancy))
	pdf.SetFont("Helvetica", "", 7)
	row("Status", fmt.Sprintf("%s (%s%%, %s)", snap.Classification, snap.DiscrepancyPct.StringFixed(2), snap.Grade))
	separator()

	row("Transactions", fmt.Sprintf("%d", snap.TransactionCount))
	row("Orders", fmt.Sprintf("%d", snap.OrderCount))

	if snap.Notes != "" {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.MultiCell(contentW, 3.5, tr("Notes: "+snap.Notes), "", "L", false)
	}
	return pdf
}

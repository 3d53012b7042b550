package store

import (
	"bytes"
	"context"
	"fmt"

	"github.com/careledger/claimsort/internal/model"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/xuri/excelize/v2"
)

// ReportName is the fixed report artifact name inside each grouping
const ReportName = "claim_report.xlsx"

// reportSheet is the worksheet data rows are appended to
const reportSheet = "Sheet1"

// reportHeader is the fixed header row written when a report is created
var reportHeader = []interface{}{
	"Document", "Category", "Patient", "Clinic", "Bill Number", "Amount", "Event Date",
}

// Report appends per-document rows to the Excel report artifact stored
// inside each claim grouping. The artifact is created with a header row
// on first use; re-ensuring an existing report reuses it.
type Report struct {
	fs afs.Service
}

// NewReport creates a report store
func NewReport() *Report {
	return &Report{fs: afs.New()}
}

// Append ensures the report artifact exists in the grouping and appends
// one data row describing the record
func (r *Report) Append(ctx context.Context, groupingURL string, rec *model.DocumentRecord, storedName string) error {
	reportURL := url.Join(groupingURL, ReportName)

	f, err := r.open(ctx, reportURL)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(reportSheet)
	if err != nil {
		return fmt.Errorf("read report rows %s: %w", reportURL, err)
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return fmt.Errorf("report cell: %w", err)
	}

	row := []interface{}{
		storedName,
		string(rec.Category),
		rec.Fields.PatientName,
		rec.Fields.ClinicName,
		rec.Fields.BillNumber,
		rec.Fields.Amount,
		rec.EventDate.Format("2006-01-02"),
	}
	if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
		return fmt.Errorf("append report row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	if err := r.fs.Upload(ctx, reportURL, fileMode, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("write report %s: %w", reportURL, err)
	}
	return nil
}

// open loads the existing report workbook or creates a fresh one with
// the header row
func (r *Report) open(ctx context.Context, reportURL string) (*excelize.File, error) {
	exists, err := r.fs.Exists(ctx, reportURL)
	if err != nil {
		return nil, fmt.Errorf("check report %s: %w", reportURL, err)
	}

	if exists {
		data, err := r.fs.DownloadWithURL(ctx, reportURL)
		if err != nil {
			return nil, fmt.Errorf("read report %s: %w", reportURL, err)
		}
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open report %s: %w", reportURL, err)
		}
		return f, nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return f, nil
}

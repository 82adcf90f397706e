package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"analytics-intake/internal/domain"
)

const sheetName = "Analytics"

var headers = []string{
	"Date",
	"Format",
	"Submitter",
	"Post Views",
	"Likes",
	"Comments",
	"Shares",
	"Submission ID",
}

// Lister reads one month of the submission ledger.
type Lister interface {
	ListPeriod(ctx context.Context, period string) ([]domain.Submission, error)
}

// Service renders ledger months as XLSX workbooks.
type Service struct {
	lister Lister
	logger *slog.Logger
}

func NewService(lister Lister, logger *slog.Logger) (*Service, error) {
	if lister == nil {
		return nil, errors.New("export: lister must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{lister: lister, logger: logger}, nil
}

// Workbook returns the submissions recorded in period (YYYY-MM) as XLSX bytes,
// one row per submission in ledger order.
func (s *Service) Workbook(ctx context.Context, period string) ([]byte, error) {
	start := time.Now()

	subs, err := s.lister.ListPeriod(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("export: list %s: %w", period, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("export: sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("export: header %s: %w", h, err)
		}
	}

	for i, sub := range subs {
		row := i + 2
		values := []any{
			sub.SubmittedAt.UTC().Format("2006-01-02 15:04"),
			string(sub.Format),
			sub.Submitter,
			sub.Metrics.Views,
			sub.Metrics.Likes,
			sub.Metrics.Comments,
			sub.Metrics.Shares,
			sub.ID,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("export: row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "C", 24)
	_ = f.SetColWidth(sheetName, "D", "G", 12)
	_ = f.SetColWidth(sheetName, "H", "H", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"period", period,
		"rows", len(subs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

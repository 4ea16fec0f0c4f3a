package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/meattrace/internal/config"
	"github.com/mamadbah2/meattrace/internal/domain/models"
)

const (
	rejectionRange = "Rejections!A:J"
	appealRange    = "Appeals!A:H"
	timeFormat     = "2006-01-02 15:04:05"
)

// Exporter appends compliance audit rows to an external spreadsheet so
// auditors can review rejections and appeals without database access.
type Exporter interface {
	AppendRejection(ctx context.Context, r models.RejectionReason) error
	AppendAppeal(ctx context.Context, a models.Appeal) error
}

// GoogleSheetExporter implements Exporter using the official Google Sheets
// API.
type GoogleSheetExporter struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetExporter builds a Google Sheets backed exporter instance.
func NewGoogleSheetExporter(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (Exporter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetExporter{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendRejection writes one rejection record as an audit row.
func (e *GoogleSheetExporter) AppendRejection(ctx context.Context, r models.RejectionReason) error {
	values := []interface{}{
		r.RejectedAt.Format(timeFormat),
		r.ID,
		string(r.UnitKind),
		r.UnitID,
		string(r.Category),
		r.SpecificReason,
		r.Notes,
		r.RejectedBy,
		string(r.RejectingScope),
		r.RejectingUnit,
	}
	return e.appendRow(ctx, rejectionRange, values)
}

// AppendAppeal writes one appeal record as an audit row.
func (e *GoogleSheetExporter) AppendAppeal(ctx context.Context, a models.Appeal) error {
	resolvedAt := ""
	if a.ResolvedAt != nil {
		resolvedAt = a.ResolvedAt.Format(timeFormat)
	}
	values := []interface{}{
		a.FiledAt.Format(timeFormat),
		a.ID,
		a.RejectionID,
		a.FiledBy,
		a.Notes,
		string(a.Status),
		a.ResolutionNotes,
		resolvedAt,
	}
	return e.appendRow(ctx, appealRange, values)
}

func (e *GoogleSheetExporter) appendRow(ctx context.Context, sheetRange string, values []interface{}) error {
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := e.service.Spreadsheets.Values.Append(e.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	e.logger.Debug("audit row appended", zap.String("range", sheetRange))
	return nil
}

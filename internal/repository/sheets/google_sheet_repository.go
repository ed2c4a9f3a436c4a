package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/tacogroup/prodlive/internal/config"
	"github.com/tacogroup/prodlive/internal/domain/models"
)

const (
	completionWriteRange = "Completions!A:G"
	timestampFormat      = "2006-01-02 15:04:05"
)

// Log defines the production-log operations supported by the Google Sheets adapter.
type Log interface {
	AppendCompletion(ctx context.Context, m models.Machine, completedAt time.Time) error
}

// GoogleSheetRepository implements the Log interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed production log instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// AppendCompletion appends one row per completed machine target.
func (r *GoogleSheetRepository) AppendCompletion(ctx context.Context, m models.Machine, completedAt time.Time) error {
	values := []interface{}{
		completedAt.UTC().Format(timestampFormat),
		m.Location,
		m.ID,
		m.Name,
		m.WorkOrder,
		m.PipeSize,
		m.ProducedQty,
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, completionWriteRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append completion row: %w", err)
	}

	r.logger.Debug("completion row appended",
		zap.String("location", m.Location), zap.Int("machine_id", m.ID))
	return nil
}

package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
	"github.com/noah-isme/studio-asistencia-api/pkg/export"
)

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type exportSigner interface {
	Generate(relPath string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// ExportService renders verification history into downloadable CSV/PDF files
// addressed by signed tokens.
type ExportService struct {
	ledger    verificationLedger
	storage   exportStorage
	signer    exportSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
}

// NewExportService constructs the service.
func NewExportService(ledger verificationLedger, storage exportStorage, signer exportSigner, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ExportService{
		ledger:    ledger,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		loc:       loc,
	}
}

// ExportRequest scopes the history export.
type ExportRequest struct {
	From   string `json:"from" validate:"required,datetime=2006-01-02"`
	To     string `json:"to" validate:"required,datetime=2006-01-02"`
	Method string `json:"method" validate:"omitempty,oneof=presencial automatica"`
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult references the generated file.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Export renders the requested history range and stores it for signed download.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	from, _ := time.ParseInLocation(models.DateLayout, req.From, s.loc)
	to, _ := time.ParseInLocation(models.DateLayout, req.To, s.loc)
	filter := models.VerificationFilter{From: &from, To: &to, Page: 1, PageSize: 500}
	if req.Method != "" {
		method := models.VerificationMethod(req.Method)
		filter.Method = &method
	}

	records, _, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list verifications")
	}

	table := export.Table{
		Columns: []string{"client_id", "client_name", "activity", "date", "method", "kind", "verified_at"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		table.Rows = append(table.Rows, []string{
			r.ClientID, r.ClientName, r.ActivityName,
			r.Date.Format(models.DateLayout), string(r.Method), string(r.Kind),
			r.VerifiedAt.Format(time.RFC3339),
		})
	}

	var payload []byte
	switch req.Format {
	case "pdf":
		payload, err = s.pdf.Render(table, fmt.Sprintf("Verificaciones %s a %s", req.From, req.To))
	default:
		payload, err = s.csv.Render(table)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("verificaciones_%s_%s_%s.%s", req.From, req.To, uuid.NewString()[:8], req.Format)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	s.logger.Info("history export created", zap.String("file", filename), zap.Int("rows", len(records)))
	return &ExportResult{FileName: filename, Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates the token and returns the export file with its content type.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	relPath, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.ErrExportTokenInvalid
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	contentType := "text/csv"
	if len(relPath) > 4 && relPath[len(relPath)-4:] == ".pdf" {
		contentType = "application/pdf"
	}
	return file, contentType, nil
}

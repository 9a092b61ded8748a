package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
	appErrors "github.com/noah-isme/studio-asistencia-api/pkg/errors"
	"github.com/noah-isme/studio-asistencia-api/pkg/storage"
)

func newTestExportService(t *testing.T, ledger *mockLedger) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	return NewExportService(ledger, store, signer, nil, nil, time.UTC)
}

func TestExportCSVRoundtrip(t *testing.T) {
	ledger := newMockLedger()
	ledger.seed(models.VerificationRecord{
		ClientID: "c1", ClientName: "Carla Gomez", ActivityName: "pilates",
		Date: mustDate(t, "2026-03-09"), Method: models.MethodAutomatica, Kind: models.KindClaseRegular,
		VerifiedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	})
	svc := newTestExportService(t, ledger)

	result, err := svc.Export(context.Background(), ExportRequest{
		From: "2026-03-01", To: "2026-03-31", Format: "csv",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))
	assert.NotEmpty(t, result.Token)

	file, contentType, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "text/csv", contentType)
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "client_id")
	assert.Contains(t, body, "Carla Gomez")
	assert.Contains(t, body, "2026-03-09")
}

func TestExportPDFContentType(t *testing.T) {
	svc := newTestExportService(t, newMockLedger())

	result, err := svc.Export(context.Background(), ExportRequest{
		From: "2026-03-01", To: "2026-03-31", Format: "pdf",
	})
	require.NoError(t, err)

	file, contentType, err := svc.Open(result.Token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "application/pdf", contentType)
}

func TestExportValidatesPayload(t *testing.T) {
	svc := newTestExportService(t, newMockLedger())

	_, err := svc.Export(context.Background(), ExportRequest{From: "2026-03-01", To: "2026-03-31", Format: "xlsx"})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestOpenRejectsTamperedToken(t *testing.T) {
	svc := newTestExportService(t, newMockLedger())

	_, _, err := svc.Open("1893456000.dGFtcGVyZWQ.deadbeef")

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrExportTokenInvalid.Code, appErr.Code)
}

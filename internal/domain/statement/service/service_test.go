package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/statement/repository"
)

type mockStatementRepo struct {
	mock.Mock
}

func (m *mockStatementRepo) BankAccountExists(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStatementRepo) ExistingExternalIDs(ctx context.Context, accountID uuid.UUID, externalIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, accountID, externalIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *mockStatementRepo) CreateBatch(ctx context.Context, batch *repository.ImportBatch, txs []*repository.FinancialTransaction) error {
	args := m.Called(ctx, batch, txs)
	return args.Error(0)
}

func (m *mockStatementRepo) GetBatch(ctx context.Context, tenantID, batchID uuid.UUID) (*repository.ImportBatch, error) {
	args := m.Called(ctx, tenantID, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ImportBatch), args.Error(1)
}

func (m *mockStatementRepo) ListBatches(ctx context.Context, tenantID uuid.UUID) ([]*repository.ImportBatch, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.ImportBatch), args.Error(1)
}

func (m *mockStatementRepo) DeleteBatch(ctx context.Context, tenantID, batchID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, batchID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStatementRepo) ListBatchTransactions(ctx context.Context, tenantID, batchID uuid.UUID, filter repository.ListFilter) ([]*repository.FinancialTransaction, error) {
	args := m.Called(ctx, tenantID, batchID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.FinancialTransaction), args.Error(1)
}

type mockReconciler struct {
	done chan struct{}
}

func (m *mockReconciler) AutoReconcileBatch(ctx context.Context, tenantID, batchID uuid.UUID) (int, error) {
	close(m.done)
	return 1, nil
}

const importOFX = `OFXHEADER:100
<OFX>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260310
<TRNAMT>-450,00
<FITID>TX-001
<MEMO>Pagamento CONSTRUFER LTDA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260312
<TRNAMT>1200,00
<FITID>TX-002
<MEMO>Medição obra residencial
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315
<TRNAMT>-80,00
<FITID>TX-003
<MEMO>Tarifa bancária
</STMTTRN>
</BANKTRANLIST>
</OFX>`

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestImportService_Import(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("BankAccountExists", mock.Anything, tenantID, accountID).Return(true, nil)
	repo.On("ExistingExternalIDs", mock.Anything, accountID, []string{"TX-001", "TX-002", "TX-003"}).
		Return(map[string]struct{}{"TX-002": {}}, nil)

	var gotBatch *repository.ImportBatch
	var gotTxs []*repository.FinancialTransaction
	repo.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			gotBatch = args.Get(1).(*repository.ImportBatch)
			gotTxs = args.Get(2).([]*repository.FinancialTransaction)
		}).
		Return(nil)

	svc := NewImportService(repo, nil, nil, testLogger())
	res, err := svc.Import(context.Background(), ImportInput{
		TenantID:      tenantID,
		UserID:        uuid.New(),
		BankAccountID: accountID,
		FileName:      "extrato_marco.ofx",
		Source:        BytesSource(importOFX),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.ImportedCount)
	assert.Equal(t, 1, res.DuplicateCount)

	require.NotNil(t, res.PeriodStart)
	require.NotNil(t, res.PeriodEnd)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), *res.PeriodStart)
	assert.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), *res.PeriodEnd)

	require.NotNil(t, gotBatch)
	assert.Equal(t, "ofx", gotBatch.FileType)
	require.Len(t, gotTxs, 2)
	for _, tx := range gotTxs {
		assert.Equal(t, repository.StatusPending, tx.ReconciliationStatus)
		assert.False(t, tx.Amount.IsNegative(), "stored amounts are absolute")
		assert.Equal(t, tx.Description, tx.RawDescription)
	}
	assert.Equal(t, "EXPENSE", gotTxs[0].Type)
	assert.Equal(t, "Despesa Importada", gotTxs[0].Category)
	assert.Equal(t, "Receita Importada", gotTxs[1].Category)

	repo.AssertExpectations(t)
}

func TestImportService_Import_UnsupportedFileType(t *testing.T) {
	repo := new(mockStatementRepo)
	svc := NewImportService(repo, nil, nil, testLogger())

	_, err := svc.Import(context.Background(), ImportInput{
		FileName: "extrato.pdf",
		Source:   BytesSource("x"),
	})
	assert.ErrorIs(t, err, common.ErrUnsupportedFileType)
	repo.AssertNotCalled(t, "BankAccountExists", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportService_Import_BankAccountNotFound(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("BankAccountExists", mock.Anything, tenantID, accountID).Return(false, nil)

	svc := NewImportService(repo, nil, nil, testLogger())
	_, err := svc.Import(context.Background(), ImportInput{
		TenantID:      tenantID,
		BankAccountID: accountID,
		FileName:      "extrato.ofx",
		Source:        BytesSource(importOFX),
	})
	assert.ErrorIs(t, err, common.ErrBankAccountNotFound)
	repo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportService_Import_EmptyStatement(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("BankAccountExists", mock.Anything, tenantID, accountID).Return(true, nil)

	svc := NewImportService(repo, nil, nil, testLogger())
	_, err := svc.Import(context.Background(), ImportInput{
		TenantID:      tenantID,
		BankAccountID: accountID,
		FileName:      "vazio.ofx",
		Source:        BytesSource("OFXHEADER:100\n<OFX></OFX>"),
	})
	assert.ErrorIs(t, err, common.ErrEmptyStatement)
	repo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportService_Import_PersistenceFailureSurfaces(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("BankAccountExists", mock.Anything, tenantID, accountID).Return(true, nil)
	repo.On("ExistingExternalIDs", mock.Anything, accountID, mock.Anything).Return(nil, nil)
	repo.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	svc := NewImportService(repo, nil, nil, testLogger())
	_, err := svc.Import(context.Background(), ImportInput{
		TenantID:      tenantID,
		BankAccountID: accountID,
		FileName:      "extrato.ofx",
		Source:        BytesSource(importOFX),
	})
	assert.ErrorContains(t, err, "connection reset")
}

func TestImportService_Import_TriggersAutoReconcile(t *testing.T) {
	tenantID := uuid.New()
	accountID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("BankAccountExists", mock.Anything, tenantID, accountID).Return(true, nil)
	repo.On("ExistingExternalIDs", mock.Anything, accountID, mock.Anything).Return(nil, nil)
	repo.On("CreateBatch", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rec := &mockReconciler{done: make(chan struct{})}
	svc := NewImportService(repo, nil, rec, testLogger())
	_, err := svc.Import(context.Background(), ImportInput{
		TenantID:      tenantID,
		BankAccountID: accountID,
		FileName:      "extrato.ofx",
		Source:        BytesSource(importOFX),
		AutoReconcile: true,
	})
	require.NoError(t, err)

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("auto reconciliation was not triggered")
	}
}

func TestImportService_ListBatchTransactions_InvalidFilter(t *testing.T) {
	repo := new(mockStatementRepo)
	svc := NewImportService(repo, nil, nil, testLogger())

	_, err := svc.ListBatchTransactions(context.Background(), uuid.New(), uuid.New(), "WHATEVER")
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestImportService_ListBatchTransactions_UnknownBatch(t *testing.T) {
	tenantID := uuid.New()
	batchID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("GetBatch", mock.Anything, tenantID, batchID).Return(nil, common.ErrNotFound)

	svc := NewImportService(repo, nil, nil, testLogger())
	_, err := svc.ListBatchTransactions(context.Background(), tenantID, batchID, repository.FilterAll)
	assert.ErrorIs(t, err, common.ErrNotFound)
	repo.AssertNotCalled(t, "ListBatchTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestImportService_DeleteBatch_NotFound(t *testing.T) {
	tenantID := uuid.New()
	batchID := uuid.New()

	repo := new(mockStatementRepo)
	repo.On("DeleteBatch", mock.Anything, tenantID, batchID).Return(false, nil)

	svc := NewImportService(repo, nil, nil, testLogger())
	err := svc.DeleteBatch(context.Background(), tenantID, batchID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

// Package handler exposes the statement import HTTP endpoints.
package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/statement/repository"
	"github.com/obrastack/conciliador/internal/domain/statement/service"
	"github.com/obrastack/conciliador/pkg/middleware"
)

const maxUploadBytes = 32 << 20

// StatementHandler serves the import endpoints.
type StatementHandler struct {
	svc    *service.ImportService
	logger *slog.Logger
}

// NewStatementHandler creates the handler.
func NewStatementHandler(svc *service.ImportService, logger *slog.Logger) *StatementHandler {
	return &StatementHandler{svc: svc, logger: logger}
}

// Routes mounts the import endpoints on r.
func (h *StatementHandler) Routes(r chi.Router) {
	r.Post("/imports", h.importStatement)
	r.Get("/imports", h.listBatches)
	r.Delete("/imports/{batchID}", h.deleteBatch)
	r.Get("/imports/{batchID}/transactions", h.listBatchTransactions)
}

type importResponse struct {
	BatchID        uuid.UUID  `json:"batch_id"`
	TotalRecords   int        `json:"total_records"`
	ImportedCount  int        `json:"imported_count"`
	DuplicateCount int        `json:"duplicate_count"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
}

// fileSource defers reading the multipart part until the service wants the
// bytes.
type fileSource struct {
	file multipart.File
}

func (f fileSource) Bytes(context.Context) ([]byte, error) {
	data, err := io.ReadAll(f.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}

func (h *StatementHandler) importStatement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: invalid multipart body", common.ErrBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: missing file field", common.ErrBadRequest))
		return
	}
	defer file.Close()

	bankAccountID, err := uuid.Parse(r.FormValue("bank_account_id"))
	if err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: invalid bank_account_id", common.ErrBadRequest))
		return
	}

	res, err := h.svc.Import(r.Context(), service.ImportInput{
		TenantID:      middleware.TenantFromContext(r.Context()),
		UserID:        middleware.UserFromContext(r.Context()),
		BankAccountID: bankAccountID,
		FileName:      header.Filename,
		Source:        fileSource{file: file},
		AutoReconcile: r.FormValue("auto_reconcile") == "true",
	})
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	common.WriteJSON(w, http.StatusCreated, importResponse{
		BatchID:        res.BatchID,
		TotalRecords:   res.TotalRecords,
		ImportedCount:  res.ImportedCount,
		DuplicateCount: res.DuplicateCount,
		PeriodStart:    res.PeriodStart,
		PeriodEnd:      res.PeriodEnd,
	})
}

type batchResponse struct {
	ID             uuid.UUID  `json:"id"`
	BankAccountID  uuid.UUID  `json:"bank_account_id"`
	FileName       string     `json:"file_name"`
	FileType       string     `json:"file_type"`
	TotalRecords   int        `json:"total_records"`
	ImportedCount  int        `json:"imported_count"`
	DuplicateCount int        `json:"duplicate_count"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (h *StatementHandler) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.svc.ListBatches(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchResponse{
			ID:             b.ID,
			BankAccountID:  b.BankAccountID,
			FileName:       b.FileName,
			FileType:       b.FileType,
			TotalRecords:   b.TotalRecords,
			ImportedCount:  b.ImportedCount,
			DuplicateCount: b.DuplicateCount,
			PeriodStart:    b.PeriodStart,
			PeriodEnd:      b.PeriodEnd,
			CreatedAt:      b.CreatedAt,
		})
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *StatementHandler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: invalid batch id", common.ErrBadRequest))
		return
	}

	if err := h.svc.DeleteBatch(r.Context(), middleware.TenantFromContext(r.Context()), batchID); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusNoContent, nil)
}

type transactionResponse struct {
	ID                   uuid.UUID `json:"id"`
	Type                 string    `json:"type"`
	Category             string    `json:"category"`
	Amount               string    `json:"amount"`
	Date                 time.Time `json:"date"`
	Description          string    `json:"description"`
	ExternalID           *string   `json:"external_id,omitempty"`
	ReconciliationStatus string    `json:"reconciliation_status"`
	LinkedEntityType     *string   `json:"linked_entity_type,omitempty"`
	LinkedEntityID       *string   `json:"linked_entity_id,omitempty"`
	LinkedEntityName     *string   `json:"linked_entity_name,omitempty"`
}

func (h *StatementHandler) listBatchTransactions(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: invalid batch id", common.ErrBadRequest))
		return
	}

	filter := repository.ListFilter(r.URL.Query().Get("status"))
	txs, err := h.svc.ListBatchTransactions(r.Context(), middleware.TenantFromContext(r.Context()), batchID, filter)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp := transactionResponse{
			ID:                   tx.ID,
			Type:                 tx.Type,
			Category:             tx.Category,
			Amount:               tx.Amount.String(),
			Date:                 tx.Date,
			Description:          tx.Description,
			ExternalID:           tx.ExternalID,
			ReconciliationStatus: string(tx.ReconciliationStatus),
			LinkedEntityType:     tx.LinkedEntityType,
			LinkedEntityName:     tx.LinkedEntityName,
		}
		if tx.LinkedEntityID != nil {
			id := tx.LinkedEntityID.String()
			resp.LinkedEntityID = &id
		}
		out = append(out, resp)
	}
	common.WriteJSON(w, http.StatusOK, out)
}

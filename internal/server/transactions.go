package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	timeLayout           = time.RFC3339Nano
)

type postingRequest struct {
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	SubAccountID uuid.UUID `json:"sub_account_id"`
}

type createTransactionRequest struct {
	Reference   string           `json:"reference"`
	Description string           `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
	Amount      int64            `json:"amount"`
	CreatedBy   string           `json:"created_by"`
	Postings    []postingRequest `json:"postings"`
}

type transactionResponse struct {
	models.PostedTransaction
	AmountMajor string `json:"amount_major"`
}

func newTransactionResponse(posted models.PostedTransaction) transactionResponse {
	return transactionResponse{
		PostedTransaction: posted,
		AmountMajor:       models.MajorUnits(posted.Amount).StringFixed(2),
	}
}

// createTransaction handles POST /transactions. A replayed idempotency key
// answers 200 with the original transaction instead of 201.
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	key, err := uuid.Parse(r.Header.Get(headerIdempotencyKey))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Idempotency-Key header must be a UUID")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	postings := make([]models.PostingRequest, len(req.Postings))
	for i, p := range req.Postings {
		postings[i] = models.PostingRequest{
			Direction:    models.Direction(p.Type),
			Amount:       p.Amount,
			SubAccountID: p.SubAccountID,
		}
	}

	result, err := s.ledger.CreateTransaction(r.Context(), models.TransactionRequest{
		IdempotencyKey: key,
		Reference:      req.Reference,
		Description:    req.Description,
		Timestamp:      req.Timestamp,
		Amount:         req.Amount,
		CreatedBy:      req.CreatedBy,
		Postings:       postings,
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		w.Header().Set(headerReplayed, "true")
	}

	writeJSON(w, status, newTransactionResponse(result.PostedTransaction))
}

// getTransaction handles GET /transactions/{transactionID}.
func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "transactionID")
	if !ok {
		return
	}

	posted, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTransactionResponse(posted))
}

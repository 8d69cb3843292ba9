package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
)

type createAccountRequest struct {
	Reference string `json:"reference"`
	Type      string `json:"type"`
	CreatedBy string `json:"created_by"`
}

type createSubAccountRequest struct {
	Reference string `json:"reference"`
	CreatedBy string `json:"created_by"`
}

type accountResponse struct {
	models.Account
	SubAccounts []models.SubAccount `json:"sub_accounts"`
}

type subAccountBalance struct {
	SubAccountID uuid.UUID `json:"sub_account_id"`
	Reference    string    `json:"reference"`
	Amount
}

type accountBalanceResponse struct {
	AccountID   uuid.UUID           `json:"account_id"`
	Balance     Amount              `json:"balance"`
	SubAccounts []subAccountBalance `json:"sub_accounts"`
}

type twoPartyBalanceResponse struct {
	AccountID      uuid.UUID `json:"account_id"`
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Balance        Amount    `json:"balance"`
}

type statementView struct {
	Amount
	BalanceDateTime string `json:"balance_date_time"`
}

type subAccountBalanceResponse struct {
	SubAccountID    uuid.UUID      `json:"sub_account_id"`
	Balance         Amount         `json:"balance"`
	LatestStatement *statementView `json:"latest_statement,omitempty"`
}

// createAccount handles POST /accounts.
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	account, err := s.directory.CreateAccount(r.Context(), req.Reference, models.AccountType(req.Type), req.CreatedBy)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse{Account: account, SubAccounts: []models.SubAccount{}})
}

// findAccounts handles GET /accounts?reference=R.
func (s *Server) findAccounts(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing reference")
		return
	}

	accounts, err := s.directory.FindAccountsByReference(r.Context(), reference)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// getAccount handles GET /accounts/{accountID}.
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.loadAccount(w, r, "accountID")
	if !ok {
		return
	}

	subAccounts, err := s.directory.ListSubAccounts(r.Context(), account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse{Account: account, SubAccounts: subAccounts})
}

// createSubAccount handles POST /accounts/{accountID}/sub-accounts.
func (s *Server) createSubAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseID(w, r, "accountID")
	if !ok {
		return
	}

	var req createSubAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	subAccount, err := s.directory.CreateSubAccount(r.Context(), accountID, req.Reference, req.CreatedBy)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, subAccount)
}

// accountBalance handles GET /accounts/{accountID}/balance.
func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := s.loadAccount(w, r, "accountID")
	if !ok {
		return
	}

	subAccounts, err := s.directory.ListSubAccounts(r.Context(), account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	balances, err := s.balances.SubAccountBalances(r.Context(), account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := accountBalanceResponse{AccountID: account.ID, SubAccounts: make([]subAccountBalance, 0, len(subAccounts))}
	var total int64
	for _, sa := range subAccounts {
		total += balances[sa.ID]
		resp.SubAccounts = append(resp.SubAccounts, subAccountBalance{
			SubAccountID: sa.ID,
			Reference:    sa.Reference,
			Amount:       newAmount(balances[sa.ID]),
		})
	}
	resp.Balance = newAmount(total)

	writeJSON(w, http.StatusOK, resp)
}

// twoPartyBalance handles GET /accounts/{accountID}/balance/{otherID}.
func (s *Server) twoPartyBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := s.loadAccount(w, r, "accountID")
	if !ok {
		return
	}
	other, ok := s.loadAccount(w, r, "otherID")
	if !ok {
		return
	}

	balance, err := s.balances.TwoPartyBalance(r.Context(), account.ID, other.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, twoPartyBalanceResponse{
		AccountID:      account.ID,
		CounterpartyID: other.ID,
		Balance:        newAmount(balance),
	})
}

// accountTransactions handles GET /accounts/{accountID}/transactions.
func (s *Server) accountTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := s.loadAccount(w, r, "accountID")
	if !ok {
		return
	}

	transactions, err := s.ledger.ListTransactionsForAccount(r.Context(), account.ID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// subAccountBalance handles GET /sub-accounts/{subAccountID}/balance.
func (s *Server) subAccountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "subAccountID")
	if !ok {
		return
	}

	_, found, err := s.directory.ResolveSubAccount(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "not_found", "Sub-account not found")
		return
	}

	balance, err := s.balances.SubAccountBalance(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	resp := subAccountBalanceResponse{SubAccountID: id, Balance: newAmount(balance)}

	snapshot, found, err := s.balances.LatestStatementBalance(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if found {
		resp.LatestStatement = &statementView{
			Amount:          newAmount(snapshot.Amount),
			BalanceDateTime: snapshot.BalanceDateTime.Format(timeLayout),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loadAccount(w http.ResponseWriter, r *http.Request, param string) (models.Account, bool) {
	id, ok := parseID(w, r, param)
	if !ok {
		return models.Account{}, false
	}

	account, found, err := s.directory.ResolveAccount(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return models.Account{}, false
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "not_found", "Account not found")
		return models.Account{}, false
	}
	return account, true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

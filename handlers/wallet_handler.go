package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-engine/middleware"
	"github.com/Dosada05/tournament-engine/services"
)

type WalletHandler struct {
	ledger services.LedgerService
}

func NewWalletHandler(ledger services.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// owner resolves {ownerID} and checks that the caller may act on it.
func (h *WalletHandler) owner(w http.ResponseWriter, r *http.Request) (int, bool) {
	ownerID, err := getIDFromURL(r, "ownerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return 0, false
	}
	userID, role, err := caller(r)
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return 0, false
	}
	if ownerID != userID && role != middleware.RoleAdmin {
		forbiddenResponse(w, r, "you can only access your own wallet")
		return 0, false
	}
	return ownerID, true
}

// GetHandler handles GET /wallets/{ownerID}?limit=N.
func (h *WalletHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
		limit = n
	}

	wallet, err := h.ledger.Balance(r.Context(), ownerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	txs, err := h.ledger.Transactions(r.Context(), ownerID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"wallet": wallet, "transactions": txs})
}

type depositInput struct {
	Amount int64 `json:"amount"`
}

// DepositHandler handles POST /wallets/{ownerID}/deposit.
func (h *WalletHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var input depositInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	wallet, err := h.ledger.Deposit(r.Context(), ownerID, input.Amount)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"wallet": wallet})
}

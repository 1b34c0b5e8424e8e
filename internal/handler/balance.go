package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/response"

	"github.com/shopspring/decimal"
)

type BalanceResponseData struct {
	UserID                string          `json:"user_id"`
	TotalEarnedUSDT       decimal.Decimal `json:"total_earned_usdt"`
	TotalEarnedNFTCount   int64           `json:"total_earned_nft_count"`
	AvailableUSDT         decimal.Decimal `json:"available_usdt"`
	AvailableNFTCount     int64           `json:"available_nft_count"`
	TotalWithdrawnUSDT    decimal.Decimal `json:"total_withdrawn_usdt"`
	TotalRedeemedNFTCount int64           `json:"total_redeemed_nft_count"`
	LastWriteAt           time.Time       `json:"last_write_at"`
}

type TransactionResponseData struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	USDTBefore decimal.Decimal `json:"usdt_before"`
	USDTAfter  decimal.Decimal `json:"usdt_after"`
	NFTBefore  int64           `json:"nft_before"`
	NFTAfter   int64           `json:"nft_after"`
	CreatedAt  time.Time       `json:"created_at"`
}

type balanceHandler struct {
	ledger          *ledger.Ledger
	transactionRepo repository.TransactionLogRepository
	errHandler      *errHandler.ErrorHandler
}

func NewBalanceHandler(ledgerService *ledger.Ledger, transactionRepo repository.TransactionLogRepository, errHandler *errHandler.ErrorHandler) *balanceHandler {
	return &balanceHandler{
		ledger:          ledgerService,
		transactionRepo: transactionRepo,
		errHandler:      errHandler,
	}
}

func (h *balanceHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	balance, err := h.ledger.GetBalance(r.Context(), userID, requestMeta(r))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	message := "Balance fetched successfully"

	data := &BalanceResponseData{
		UserID:                balance.UserID,
		TotalEarnedUSDT:       balance.TotalEarnedUSDT,
		TotalEarnedNFTCount:   balance.TotalEarnedNFTCount,
		AvailableUSDT:         balance.AvailableUSDT,
		AvailableNFTCount:     balance.AvailableNFTCount,
		TotalWithdrawnUSDT:    balance.TotalWithdrawnUSDT,
		TotalRedeemedNFTCount: balance.TotalRedeemedNFTCount,
		LastWriteAt:           balance.LastWriteAt,
	}
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleIntegrity runs a full dual-ledger verification on demand. The check
// itself writes the audit trail; the response only says pass/fail.
func (h *balanceHandler) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	verified := h.ledger.VerifyIntegrity(r.Context(), userID, requestMeta(r))

	message := "Integrity verification passed"
	if !verified {
		message = "Integrity verification failed"
	}

	data := map[string]any{
		"user_id":  userID,
		"verified": verified,
	}
	err := response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *balanceHandler) HandleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	entries, err := h.transactionRepo.GetAllByUserId(userID, limit)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if len(entries) == 0 {
		message := "No transactions found"
		err = response.JSONOkResponse(w, []TransactionResponseData{}, message, nil)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	message := "Transactions retrieved successfully"

	data := make([]*TransactionResponseData, len(entries))
	for i, entry := range entries {
		data[i] = &TransactionResponseData{
			ID:         entry.ID,
			Kind:       entry.Kind,
			USDTBefore: entry.USDTBefore,
			USDTAfter:  entry.USDTAfter,
			NFTBefore:  entry.NFTBefore,
			NFTAfter:   entry.NFTAfter,
			CreatedAt:  entry.CreatedAt,
		}
	}

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

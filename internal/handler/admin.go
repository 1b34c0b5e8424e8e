package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kehindemorol/vestra/internal/context"
	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/request"
	"github.com/kehindemorol/vestra/internal/response"
	"github.com/kehindemorol/vestra/internal/scheduler"
	"github.com/kehindemorol/vestra/internal/validator"

	"github.com/shopspring/decimal"
)

type PendingWithdrawalData struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Kind               string          `json:"kind"`
	USDTAmount         decimal.Decimal `json:"usdt_amount"`
	NFTAmount          int64           `json:"nft_amount"`
	DestinationAddress string          `json:"destination_address"`
	Status             string          `json:"status"`
	RequestedAt        time.Time       `json:"requested_at"`
}

type adminHandler struct {
	scheduler  *scheduler.Scheduler
	errHandler *errHandler.ErrorHandler
}

func NewAdminHandler(withdrawalScheduler *scheduler.Scheduler, errHandler *errHandler.ErrorHandler) *adminHandler {
	return &adminHandler{
		scheduler:  withdrawalScheduler,
		errHandler: errHandler,
	}
}

func (h *adminHandler) HandlePendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	admin := context.ContextGetAuthenticatedAdmin(r)

	requests, err := h.scheduler.PendingForAdmin(r.Context(), admin.ID, requestMeta(r))
	if err != nil {
		if errors.Is(err, scheduler.ErrOutsideBusinessHours) {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusForbidden, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := make([]*PendingWithdrawalData, len(requests))
	for i, req := range requests {
		data[i] = &PendingWithdrawalData{
			ID:                 req.ID,
			UserID:             req.UserID,
			Kind:               req.Kind,
			USDTAmount:         req.USDTAmount,
			NFTAmount:          req.NFTAmount,
			DestinationAddress: req.DestinationAddress,
			Status:             req.Status,
			RequestedAt:        req.RequestedAt,
		}
	}

	message := "Pending withdrawals retrieved successfully"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleProcessWithdrawal finalizes one request as completed or failed. A
// completed response with integrity_verified false means the debit committed
// but the post-update verification flagged the ledger; the audit log already
// has the details.
func (h *adminHandler) HandleProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin := context.ContextGetAuthenticatedAdmin(r)
	requestID := r.PathValue("id")

	var input struct {
		Status          string              `json:"status"`
		TransactionHash string              `json:"transaction_hash"`
		BlockchainHash  string              `json:"blockchain_hash"`
		Notes           string              `json:"notes"`
		Validator       validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.In(input.Status, repository.WithdrawalStatusCompleted, repository.WithdrawalStatusFailed),
		"Status must be completed or failed")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.scheduler.AdminProcess(r.Context(), scheduler.AdminProcessInput{
		RequestID:       requestID,
		AdminID:         admin.ID,
		Status:          input.Status,
		TransactionHash: input.TransactionHash,
		BlockchainHash:  input.BlockchainHash,
		Notes:           input.Notes,
		Meta:            requestMeta(r),
	})

	integrityVerified := true

	if err != nil {
		var integrityErr *ledger.IntegrityError

		switch {
		case errors.Is(err, scheduler.ErrOutsideBusinessHours):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusForbidden, nil)
			return
		case errors.Is(err, scheduler.ErrRequestNotFound):
			h.errHandler.NotFound(w, r)
			return
		case errors.Is(err, scheduler.ErrAlreadyProcessed),
			errors.Is(err, scheduler.ErrInvalidWithdrawal):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		case errors.As(err, &integrityErr) && integrityErr.Stage == ledger.StagePostUpdate:
			// the withdrawal committed; only the after-the-fact check failed
			integrityVerified = false
		default:
			h.errHandler.ServerError(w, r, err)
			return
		}
	}

	message := "Withdrawal processed successfully"
	if !integrityVerified {
		message = "Withdrawal processed; post-update integrity verification failed"
	}

	data := map[string]any{
		"request_id":         requestID,
		"status":             input.Status,
		"integrity_verified": integrityVerified,
	}
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *adminHandler) HandleUpdateBusinessHours(w http.ResponseWriter, r *http.Request) {
	admin := context.ContextGetAuthenticatedAdmin(r)

	weekday, err := strconv.Atoi(r.PathValue("weekday"))
	if err != nil {
		h.errHandler.BadRequest(w, r, errors.New("weekday must be a number between 0 and 6"))
		return
	}

	var input struct {
		StartHour int                 `json:"start_hour"`
		EndHour   int                 `json:"end_hour"`
		IsActive  bool                `json:"is_active"`
		Validator validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	err = h.scheduler.UpdateBusinessHours(r.Context(), &repository.BusinessHourRow{
		Weekday:   weekday,
		StartHour: input.StartHour,
		EndHour:   input.EndHour,
		IsActive:  input.IsActive,
	}, admin.ID, requestMeta(r))
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidWithdrawal) {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	message := "Business hours updated successfully"
	err = response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

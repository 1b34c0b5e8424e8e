package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/request"
	"github.com/kehindemorol/vestra/internal/response"
	"github.com/kehindemorol/vestra/internal/scheduler"
	"github.com/kehindemorol/vestra/internal/validator"

	"github.com/shopspring/decimal"
)

type SubmittedWithdrawal struct {
	RequestID       string `json:"request_id"`
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	QueuePosition   int    `json:"queue_position,omitempty"`
	NextBusinessDay string `json:"next_business_day,omitempty"`
}

type withdrawalHandler struct {
	scheduler  *scheduler.Scheduler
	errHandler *errHandler.ErrorHandler
}

func NewWithdrawalHandler(withdrawalScheduler *scheduler.Scheduler, errHandler *errHandler.ErrorHandler) *withdrawalHandler {
	return &withdrawalHandler{
		scheduler:  withdrawalScheduler,
		errHandler: errHandler,
	}
}

// Submissions are accepted around the clock; the response tells the caller
// whether the request joined today's queue or was deferred to the next
// business day. Nothing is debited here.
func (h *withdrawalHandler) HandleSubmitWithdrawal(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID             string              `json:"user_id"`
		Kind               string              `json:"kind"`
		USDTAmount         decimal.Decimal     `json:"usdt_amount"`
		NFTAmount          int64               `json:"nft_amount"`
		DestinationAddress string              `json:"destination_address"`
		Validator          validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.UserID), "User id is required")
	input.Validator.Check(validator.In(input.Kind, repository.WithdrawalKindUSDT, repository.WithdrawalKindNFT),
		"Kind must be usdt or nft")
	input.Validator.Check(validator.NotBlank(input.DestinationAddress), "Destination address is required")
	input.Validator.Check(validator.Matches(input.DestinationAddress, validator.RgxWalletAddress),
		"Destination address is not a valid wallet address")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	result, err := h.scheduler.SubmitWithdrawal(r.Context(), scheduler.SubmitWithdrawalInput{
		UserID:             input.UserID,
		Kind:               input.Kind,
		USDTAmount:         input.USDTAmount,
		NFTAmount:          input.NFTAmount,
		DestinationAddress: input.DestinationAddress,
		Meta:               requestMeta(r),
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidWithdrawal) {
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := &SubmittedWithdrawal{
		RequestID:     result.RequestID,
		Reference:     result.Reference,
		Status:        result.Status,
		QueuePosition: result.QueuePosition,
	}
	if result.NextBusinessDay != nil {
		data.NextBusinessDay = result.NextBusinessDay.Format(time.RFC3339)
	}

	message := "Withdrawal request submitted successfully"
	if result.Status == repository.WithdrawalStatusOutsideHours {
		message = "Withdrawal request received; it will be processed on the next business day"
	}

	err = response.JSONCreatedResponse(w, data, message)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *withdrawalHandler) HandleCancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")

	var input struct {
		UserID    string              `json:"user_id"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.UserID), "User id is required")
	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.scheduler.CancelWithdrawal(r.Context(), requestID, input.UserID, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrRequestNotFound):
			h.errHandler.NotFound(w, r)
		case errors.Is(err, scheduler.ErrNotCancellable):
			response.JSONErrorResponse(w, nil, err.Error(), http.StatusUnprocessableEntity, nil)
		default:
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	message := "Withdrawal request cancelled successfully"
	err = response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// Package scheduler gates withdrawals behind the business-hours window.
// Requests can arrive at any time, but money only moves when an
// authenticated admin processes a request inside the configured window;
// the actual debit is delegated to the ledger, which re-verifies integrity
// around the write. That in-window human decision is the core security
// property of the whole subsystem.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/secret"
	"github.com/kehindemorol/vestra/internal/stream"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// WithdrawalLifecycleTopic carries submit/complete/fail/cancel events for
// the notification worker.
const WithdrawalLifecycleTopic = "withdrawal.lifecycle"

// WithdrawalLifecycleEvent is the payload produced to
// WithdrawalLifecycleTopic.
type WithdrawalLifecycleEvent struct {
	RequestID      string    `json:"request_id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	USDTAmount     string    `json:"usdt_amount"`
	NFTAmount      int64     `json:"nft_amount"`
	AdminID        string    `json:"admin_id,omitempty"`
	BlockchainHash string    `json:"blockchain_hash,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// BalanceService is the slice of the ledger the scheduler depends on. The
// scheduler never writes balance fields itself; every debit goes through
// UpdateBalance.
type BalanceService interface {
	GetBalance(ctx context.Context, userID string, meta ledger.RequestMeta) (*repository.BalanceRecord, error)
	GetBalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*repository.BalanceRecord, bool, error)
	UpdateBalance(ctx context.Context, p ledger.UpdateBalanceParams) error
	VerifyIntegrity(ctx context.Context, userID string, meta ledger.RequestMeta) bool
	LogTransaction(ctx context.Context, p ledger.TransactionLogParams) (string, error)
	LogSecurityEvent(ctx context.Context, eventType, userID, adminID string, details map[string]any, severity string, meta ledger.RequestMeta)
}

type Scheduler struct {
	db       repository.Database
	balances BalanceService
	secrets  secret.Provider
	hours    *HoursTable
	stream   *stream.KafkaStream
	logger   *slog.Logger

	now func() time.Time
}

func New(db repository.Database, balances BalanceService, secrets secret.Provider, hours *HoursTable, kafkaStream *stream.KafkaStream, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		balances: balances,
		secrets:  secrets,
		hours:    hours,
		stream:   kafkaStream,
		logger:   logger,
		now:      time.Now,
	}
}

type SubmitWithdrawalInput struct {
	UserID             string
	Kind               string
	USDTAmount         decimal.Decimal
	NFTAmount          int64
	DestinationAddress string
	Meta               ledger.RequestMeta
}

type SubmissionResult struct {
	RequestID       string
	Reference       string
	Status          string
	QueuePosition   int
	NextBusinessDay *time.Time
}

// SubmitWithdrawal validates a request against the current balance and
// stores it. Inside business hours the request goes straight onto today's
// processing queue; outside, it is deferred to the next business day. No
// balance changes here, only a record of intent.
func (s *Scheduler) SubmitWithdrawal(ctx context.Context, input SubmitWithdrawalInput) (*SubmissionResult, error) {
	balance, err := s.balances.GetBalance(ctx, input.UserID, input.Meta)
	if err != nil {
		return nil, err
	}

	switch input.Kind {
	case repository.WithdrawalKindUSDT:
		if !input.USDTAmount.IsPositive() {
			return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidWithdrawal)
		}
		if input.USDTAmount.Cmp(balance.AvailableUSDT) > 0 {
			return nil, fmt.Errorf("%w: amount exceeds available balance", ErrInvalidWithdrawal)
		}
	case repository.WithdrawalKindNFT:
		if input.NFTAmount <= 0 {
			return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidWithdrawal)
		}
		if input.NFTAmount > balance.AvailableNFTCount {
			return nil, fmt.Errorf("%w: amount exceeds available balance", ErrInvalidWithdrawal)
		}
	default:
		return nil, fmt.Errorf("%w: unknown withdrawal kind %q", ErrInvalidWithdrawal, input.Kind)
	}

	now := s.now()

	within, err := s.hours.IsWithinBusinessHours(now)
	if err != nil {
		return nil, err
	}

	request := &repository.WithdrawalRequest{
		Reference:          uuid.NewString(),
		UserID:             input.UserID,
		Kind:               input.Kind,
		USDTAmount:         input.USDTAmount,
		NFTAmount:          input.NFTAmount,
		DestinationAddress: input.DestinationAddress,
		IPAddress:          input.Meta.IP,
		UserAgent:          input.Meta.UserAgent,
	}

	// Two hashes under two secrets: the request hash covers what the user
	// asked for, the security hash is the independent value checked during
	// admin review. They are not interchangeable.
	request.RequestIntegrityHash = requestIntegrityHash(s.secrets.RequestSecret(), input, now)
	request.SecurityVerificationHash = securityVerificationHash(s.secrets.VerificationSecret(), input, now)

	result := &SubmissionResult{}

	if within {
		request.Status = repository.WithdrawalStatusPending
		request.QueuedAt = nullTime(now)
	} else {
		request.Status = repository.WithdrawalStatusOutsideHours

		next, found, err := s.hours.NextBusinessDay(now)
		if err != nil {
			return nil, err
		}
		if found {
			request.NextBusinessDay = nullTime(next)
			result.NextBusinessDay = &next
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	requestID, err := s.db.Withdrawal().Insert(request, tx)
	if err != nil {
		return nil, err
	}

	if within {
		position, err := s.db.Queue().NextPosition(tx, now)
		if err != nil {
			return nil, err
		}

		_, err = s.db.Queue().Insert(&repository.QueueEntry{
			WithdrawalRequestID: requestID,
			ScheduledDate:       now,
			ScheduledHour:       now.Hour(),
			QueuePosition:       position,
			QueueStatus:         repository.QueueStatusWaiting,
		}, tx)
		if err != nil {
			return nil, err
		}

		result.QueuePosition = position
	}

	_, err = s.balances.LogTransaction(ctx, ledger.TransactionLogParams{
		UserID:     input.UserID,
		Kind:       repository.TransactionKindWithdrawalRequested,
		USDTBefore: balance.AvailableUSDT,
		USDTAfter:  balance.AvailableUSDT,
		NFTBefore:  balance.AvailableNFTCount,
		NFTAfter:   balance.AvailableNFTCount,
		Ref:        requestID,
		Meta:       input.Meta,
		Tx:         tx,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.RequestID = requestID
	result.Reference = request.Reference
	result.Status = request.Status

	s.balances.LogSecurityEvent(ctx, "withdrawal_submitted", input.UserID, "", map[string]any{
		"request_id": requestID,
		"kind":       input.Kind,
		"status":     request.Status,
	}, repository.SeverityInfo, input.Meta)

	s.publishLifecycle(WithdrawalLifecycleEvent{
		RequestID:  requestID,
		UserID:     input.UserID,
		Kind:       input.Kind,
		Status:     request.Status,
		USDTAmount: input.USDTAmount.StringFixed(8),
		NFTAmount:  input.NFTAmount,
		OccurredAt: now.UTC(),
	})

	return result, nil
}

// PendingForAdmin returns today's processable requests, hard-gated to
// business hours. Outside the window it returns ErrOutsideBusinessHours so
// callers can distinguish "no work" from "can't work right now".
func (s *Scheduler) PendingForAdmin(ctx context.Context, adminID string, meta ledger.RequestMeta) ([]repository.WithdrawalRequest, error) {
	now := s.now()

	within, err := s.hours.IsWithinBusinessHours(now)
	if err != nil {
		return nil, err
	}
	if !within {
		return nil, ErrOutsideBusinessHours
	}

	return s.db.Withdrawal().PendingForDate(now, 50)
}

type AdminProcessInput struct {
	RequestID       string
	AdminID         string
	Status          string
	TransactionHash string
	BlockchainHash  string
	Notes           string
	Meta            ledger.RequestMeta
}

// AdminProcess finalizes a withdrawal as completed or failed. This is the
// only code path in the system that decreases a balance, and it refuses to
// run outside business hours: no automated or after-hours completion, ever.
// Everything from the balance debit to the queue update runs in one
// transaction; a failure anywhere rolls back all of it.
func (s *Scheduler) AdminProcess(ctx context.Context, input AdminProcessInput) error {
	if input.Status != repository.WithdrawalStatusCompleted && input.Status != repository.WithdrawalStatusFailed {
		return fmt.Errorf("%w: processing status must be %q or %q",
			ErrInvalidWithdrawal, repository.WithdrawalStatusCompleted, repository.WithdrawalStatusFailed)
	}

	now := s.now()

	within, err := s.hours.IsWithinBusinessHours(now)
	if err != nil {
		return err
	}
	if !within {
		s.balances.LogSecurityEvent(ctx, "after_hours_processing_attempt", "", input.AdminID, map[string]any{
			"request_id": input.RequestID,
		}, repository.SeverityWarning, input.Meta)
		return ErrOutsideBusinessHours
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	request, found, err := s.db.Withdrawal().GetOneForUpdate(tx, input.RequestID)
	if err != nil {
		return err
	}
	if !found {
		return ErrRequestNotFound
	}

	switch request.Status {
	case repository.WithdrawalStatusPending,
		repository.WithdrawalStatusOutsideHours,
		repository.WithdrawalStatusQueued:
		// processable
	default:
		return ErrAlreadyProcessed
	}

	// The debit inputs come from a read taken under the same row lock the
	// ledger writes behind. A concurrent approval for the same user blocks
	// on this lock and then recomputes from the committed values instead
	// of overwriting them with stale ones.
	balance, balanceFound, err := s.balances.GetBalanceForUpdate(ctx, tx, request.UserID)
	if err != nil {
		return err
	}
	if !balanceFound {
		return fmt.Errorf("%w: no balance record for user", ErrInvalidWithdrawal)
	}

	usdtBefore := balance.AvailableUSDT
	nftBefore := balance.AvailableNFTCount
	usdtAfter := usdtBefore
	nftAfter := nftBefore

	if input.Status == repository.WithdrawalStatusCompleted {
		fields := ledger.BalanceFields{
			TotalEarnedUSDT:       balance.TotalEarnedUSDT,
			TotalEarnedNFTCount:   balance.TotalEarnedNFTCount,
			AvailableUSDT:         balance.AvailableUSDT,
			AvailableNFTCount:     balance.AvailableNFTCount,
			TotalWithdrawnUSDT:    balance.TotalWithdrawnUSDT,
			TotalRedeemedNFTCount: balance.TotalRedeemedNFTCount,
		}

		switch request.Kind {
		case repository.WithdrawalKindUSDT:
			if request.USDTAmount.Cmp(balance.AvailableUSDT) > 0 {
				return fmt.Errorf("%w: amount exceeds available balance", ErrInvalidWithdrawal)
			}
			fields.AvailableUSDT = fields.AvailableUSDT.Sub(request.USDTAmount)
			fields.TotalWithdrawnUSDT = fields.TotalWithdrawnUSDT.Add(request.USDTAmount)
			usdtAfter = fields.AvailableUSDT
		case repository.WithdrawalKindNFT:
			if request.NFTAmount > balance.AvailableNFTCount {
				return fmt.Errorf("%w: amount exceeds available balance", ErrInvalidWithdrawal)
			}
			fields.AvailableNFTCount -= request.NFTAmount
			fields.TotalRedeemedNFTCount += request.NFTAmount
			nftAfter = fields.AvailableNFTCount
		}

		err = s.balances.UpdateBalance(ctx, ledger.UpdateBalanceParams{
			UserID:         request.UserID,
			Fields:         fields,
			TransactionRef: input.RequestID,
			BlockchainHash: input.BlockchainHash,
			ActorAdminID:   input.AdminID,
			Meta:           input.Meta,
			Tx:             tx,
		})
		if err != nil {
			return err
		}
	}

	err = s.db.Withdrawal().MarkProcessed(tx, input.RequestID, input.Status,
		input.AdminID, input.Notes, input.TransactionHash, input.BlockchainHash)
	if err != nil {
		return err
	}

	if err := s.db.Queue().MarkCompleted(tx, input.RequestID, input.AdminID); err != nil {
		return err
	}

	logKind := repository.TransactionKindWithdrawalCompleted
	if input.Status == repository.WithdrawalStatusFailed {
		logKind = repository.TransactionKindWithdrawalFailed
	}

	_, err = s.balances.LogTransaction(ctx, ledger.TransactionLogParams{
		UserID:         request.UserID,
		Kind:           logKind,
		USDTBefore:     usdtBefore,
		USDTAfter:      usdtAfter,
		NFTBefore:      nftBefore,
		NFTAfter:       nftAfter,
		Ref:            input.RequestID,
		BlockchainHash: input.BlockchainHash,
		AdminID:        input.AdminID,
		Meta:           input.Meta,
		Tx:             tx,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.balances.LogSecurityEvent(ctx, "withdrawal_processed", request.UserID, input.AdminID, map[string]any{
		"request_id": input.RequestID,
		"status":     input.Status,
	}, repository.SeverityInfo, input.Meta)

	s.publishLifecycle(WithdrawalLifecycleEvent{
		RequestID:      input.RequestID,
		UserID:         request.UserID,
		Kind:           request.Kind,
		Status:         input.Status,
		USDTAmount:     request.USDTAmount.StringFixed(8),
		NFTAmount:      request.NFTAmount,
		AdminID:        input.AdminID,
		BlockchainHash: input.BlockchainHash,
		OccurredAt:     now.UTC(),
	})

	// The debit committed above; this re-check runs against the committed
	// state. A failure here means written but suspect, not rolled back.
	if input.Status == repository.WithdrawalStatusCompleted {
		if ok := s.balances.VerifyIntegrity(ctx, request.UserID, input.Meta); !ok {
			return &ledger.IntegrityError{UserID: request.UserID, Stage: ledger.StagePostUpdate}
		}
	}

	return nil
}

// CancelWithdrawal marks a not-yet-processed request cancelled and drops it
// from the queue. No balance effect; nothing was ever debited for it.
func (s *Scheduler) CancelWithdrawal(ctx context.Context, requestID, userID string, meta ledger.RequestMeta) error {
	request, found, err := s.db.Withdrawal().GetOne(requestID)
	if err != nil {
		return err
	}
	if !found || request.UserID != userID {
		return ErrRequestNotFound
	}

	switch request.Status {
	case repository.WithdrawalStatusPending,
		repository.WithdrawalStatusOutsideHours,
		repository.WithdrawalStatusQueued:
		// cancellable
	default:
		return ErrNotCancellable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.db.Withdrawal().MarkCancelled(requestID, tx); err != nil {
		return err
	}

	if err := s.db.Queue().MarkCancelled(requestID, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.balances.LogSecurityEvent(ctx, "withdrawal_cancelled", userID, "", map[string]any{
		"request_id": requestID,
	}, repository.SeverityInfo, meta)

	s.publishLifecycle(WithdrawalLifecycleEvent{
		RequestID:  requestID,
		UserID:     userID,
		Kind:       request.Kind,
		Status:     repository.WithdrawalStatusCancelled,
		USDTAmount: request.USDTAmount.StringFixed(8),
		NFTAmount:  request.NFTAmount,
		OccurredAt: s.now().UTC(),
	})

	return nil
}

// UpdateBusinessHours writes a weekday override, making holidays and
// schedule changes a data change rather than a deployment.
func (s *Scheduler) UpdateBusinessHours(ctx context.Context, row *repository.BusinessHourRow, adminID string, meta ledger.RequestMeta) error {
	if row.Weekday < 0 || row.Weekday > 6 {
		return fmt.Errorf("%w: weekday must be between 0 and 6", ErrInvalidWithdrawal)
	}
	if row.StartHour < 0 || row.StartHour > 23 || row.EndHour < 1 || row.EndHour > 24 || row.EndHour <= row.StartHour {
		return fmt.Errorf("%w: invalid business hours window", ErrInvalidWithdrawal)
	}

	row.UpdatedBy = adminID
	if err := s.hours.Update(row); err != nil {
		return err
	}

	s.balances.LogSecurityEvent(ctx, "business_hours_updated", "", adminID, map[string]any{
		"weekday":    row.Weekday,
		"start_hour": row.StartHour,
		"end_hour":   row.EndHour,
		"is_active":  row.IsActive,
	}, repository.SeverityInfo, meta)

	return nil
}

func (s *Scheduler) publishLifecycle(event WithdrawalLifecycleEvent) {
	if s.stream == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("encoding lifecycle event", "request_id", event.RequestID, "error", err)
		return
	}

	go s.stream.ProduceMessage(WithdrawalLifecycleTopic, string(payload))
}

func requestIntegrityHash(requestSecret []byte, input SubmitWithdrawalInput, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s|%s|%s|%d|%s|%d",
		input.UserID,
		input.Kind,
		input.USDTAmount.StringFixed(8),
		input.NFTAmount,
		input.DestinationAddress,
		at.Unix(),
	)))
	h.Write(requestSecret)
	return hex.EncodeToString(h.Sum(nil))
}

func securityVerificationHash(verificationSecret []byte, input SubmitWithdrawalInput, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s|%s|%s|%d",
		input.DestinationAddress,
		input.UserID,
		input.USDTAmount.StringFixed(8),
		at.UnixNano(),
	)))
	h.Write(verificationSecret)
	return hex.EncodeToString(h.Sum(nil))
}

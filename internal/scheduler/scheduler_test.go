package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/mocks"
	"github.com/kehindemorol/vestra/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testBalance() *repository.BalanceRecord {
	return &repository.BalanceRecord{
		UserID:            "user-1",
		TotalEarnedUSDT:   decimal.RequireFromString("150"),
		AvailableUSDT:     decimal.RequireFromString("100"),
		AvailableNFTCount: 2,
	}
}

// newTestScheduler wires a scheduler whose clock is pinned to at and whose
// business-hours table is served by hoursRepo.
func newTestScheduler(db repository.Database, balances BalanceService, hoursRepo repository.BusinessHoursRepository, at time.Time) *Scheduler {
	hours := NewHoursTable(hoursRepo, nil, discardLogger())

	s := New(db, balances, nil, hours, nil, discardLogger())
	s.now = func() time.Time { return at }
	return s
}

func TestSubmitWithdrawal_RejectsOverLimitUSDT(t *testing.T) {
	balances := new(mocks.MockBalanceService)
	balances.On("GetBalance", "user-1").Return(testBalance(), nil)

	// the rejection must happen before anything touches the database
	s := newTestScheduler(&mocks.MockDatabase{}, balances, new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	_, err := s.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:             "user-1",
		Kind:               repository.WithdrawalKindUSDT,
		USDTAmount:         decimal.RequireFromString("100.00000001"),
		DestinationAddress: "Tabcdefghij1234567890",
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
}

func TestSubmitWithdrawal_RejectsOverLimitNFT(t *testing.T) {
	balances := new(mocks.MockBalanceService)
	balances.On("GetBalance", "user-1").Return(testBalance(), nil)

	s := newTestScheduler(&mocks.MockDatabase{}, balances, new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	_, err := s.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:    "user-1",
		Kind:      repository.WithdrawalKindNFT,
		NFTAmount: 3,
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
}

func TestSubmitWithdrawal_RejectsNonPositiveAmount(t *testing.T) {
	balances := new(mocks.MockBalanceService)
	balances.On("GetBalance", "user-1").Return(testBalance(), nil)

	s := newTestScheduler(&mocks.MockDatabase{}, balances, new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	_, err := s.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:     "user-1",
		Kind:       repository.WithdrawalKindUSDT,
		USDTAmount: decimal.Zero,
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
}

func TestSubmitWithdrawal_RejectsUnknownKind(t *testing.T) {
	balances := new(mocks.MockBalanceService)
	balances.On("GetBalance", "user-1").Return(testBalance(), nil)

	s := newTestScheduler(&mocks.MockDatabase{}, balances, new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	_, err := s.SubmitWithdrawal(context.Background(), SubmitWithdrawalInput{
		UserID:     "user-1",
		Kind:       "gold",
		USDTAmount: decimal.RequireFromString("10"),
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
}

func TestPendingForAdmin_GatedOutsideBusinessHours(t *testing.T) {
	hoursRepo := new(mocks.MockBusinessHoursRepo)
	hoursRepo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)

	s := newTestScheduler(&mocks.MockDatabase{}, new(mocks.MockBalanceService), hoursRepo, mondayAt(18, 0))

	_, err := s.PendingForAdmin(context.Background(), "admin-1", ledger.RequestMeta{})
	require.ErrorIs(t, err, ErrOutsideBusinessHours)
}

func TestAdminProcess_GatedOutsideBusinessHours(t *testing.T) {
	hoursRepo := new(mocks.MockBusinessHoursRepo)
	hoursRepo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)

	balances := new(mocks.MockBalanceService)
	balances.On("LogSecurityEvent", "after_hours_processing_attempt", "", "admin-1", repository.SeverityWarning).Return()

	s := newTestScheduler(&mocks.MockDatabase{}, balances, hoursRepo, mondayAt(18, 0))

	err := s.AdminProcess(context.Background(), AdminProcessInput{
		RequestID: "req-1",
		AdminID:   "admin-1",
		Status:    repository.WithdrawalStatusCompleted,
	})

	require.ErrorIs(t, err, ErrOutsideBusinessHours)
	balances.AssertExpectations(t)
}

// A concurrent approval for the same user may commit between submission and
// processing. The debit must be computed from the row-locked read inside the
// processing transaction, never from an earlier unlocked one.
func TestAdminProcess_DebitsFromRowLockedBalance(t *testing.T) {
	hoursRepo := new(mocks.MockBusinessHoursRepo)
	hoursRepo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)

	withdrawals := new(mocks.MockWithdrawalRepo)
	withdrawals.On("GetOneForUpdate", "req-2").Return(&repository.WithdrawalRequest{
		ID:         "req-2",
		UserID:     "user-1",
		Kind:       repository.WithdrawalKindUSDT,
		USDTAmount: decimal.RequireFromString("40"),
		Status:     repository.WithdrawalStatusQueued,
	}, true, nil)
	withdrawals.On("MarkProcessed", "req-2", repository.WithdrawalStatusCompleted, "admin-1").Return(nil)

	queue := new(mocks.MockQueueRepo)
	queue.On("MarkCompleted", "req-2", "admin-1").Return(nil)

	// the locked read reflects an earlier approval that already committed:
	// 100 available became 60, with 40 withdrawn
	locked := &repository.BalanceRecord{
		UserID:             "user-1",
		TotalEarnedUSDT:    decimal.RequireFromString("150"),
		AvailableUSDT:      decimal.RequireFromString("60"),
		TotalWithdrawnUSDT: decimal.RequireFromString("40"),
	}

	balances := new(mocks.MockBalanceService)
	balances.On("GetBalanceForUpdate", "user-1").Return(locked, true, nil)
	balances.On("UpdateBalance", mock.MatchedBy(func(p ledger.UpdateBalanceParams) bool {
		return p.Fields.AvailableUSDT.Equal(decimal.RequireFromString("20")) &&
			p.Fields.TotalWithdrawnUSDT.Equal(decimal.RequireFromString("80"))
	})).Return(nil)
	balances.On("LogTransaction", mock.MatchedBy(func(p ledger.TransactionLogParams) bool {
		return p.USDTBefore.Equal(decimal.RequireFromString("60")) &&
			p.USDTAfter.Equal(decimal.RequireFromString("20"))
	})).Return("content-hash", nil)
	balances.On("VerifyIntegrity", "user-1").Return(true)
	balances.On("LogSecurityEvent", "withdrawal_processed", "user-1", "admin-1", repository.SeverityInfo).Return()

	db := &mocks.MockDatabase{
		WithdrawalRepo: withdrawals,
		QueueRepo:      queue,
		TxProvider:     mocks.NewTestTx,
	}

	s := newTestScheduler(db, balances, hoursRepo, mondayAt(12, 0))

	err := s.AdminProcess(context.Background(), AdminProcessInput{
		RequestID: "req-2",
		AdminID:   "admin-1",
		Status:    repository.WithdrawalStatusCompleted,
	})

	require.NoError(t, err)
	balances.AssertNotCalled(t, "GetBalance", mock.Anything)
	balances.AssertExpectations(t)
	withdrawals.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestAdminProcess_RejectsOverLimitAtLockedBalance(t *testing.T) {
	hoursRepo := new(mocks.MockBusinessHoursRepo)
	hoursRepo.On("GetByWeekday", 1).Return(weekdayRow(1, 9, 16), true, nil)

	withdrawals := new(mocks.MockWithdrawalRepo)
	withdrawals.On("GetOneForUpdate", "req-3").Return(&repository.WithdrawalRequest{
		ID:         "req-3",
		UserID:     "user-1",
		Kind:       repository.WithdrawalKindUSDT,
		USDTAmount: decimal.RequireFromString("40"),
		Status:     repository.WithdrawalStatusQueued,
	}, true, nil)

	// another approval drained the balance below this request's amount
	locked := &repository.BalanceRecord{
		UserID:             "user-1",
		TotalEarnedUSDT:    decimal.RequireFromString("150"),
		AvailableUSDT:      decimal.RequireFromString("30"),
		TotalWithdrawnUSDT: decimal.RequireFromString("70"),
	}

	balances := new(mocks.MockBalanceService)
	balances.On("GetBalanceForUpdate", "user-1").Return(locked, true, nil)

	db := &mocks.MockDatabase{
		WithdrawalRepo: withdrawals,
		TxProvider:     mocks.NewTestTx,
	}

	s := newTestScheduler(db, balances, hoursRepo, mondayAt(12, 0))

	err := s.AdminProcess(context.Background(), AdminProcessInput{
		RequestID: "req-3",
		AdminID:   "admin-1",
		Status:    repository.WithdrawalStatusCompleted,
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
	balances.AssertNotCalled(t, "UpdateBalance", mock.Anything)
}

func TestAdminProcess_RejectsUnknownProcessingStatus(t *testing.T) {
	s := newTestScheduler(&mocks.MockDatabase{}, new(mocks.MockBalanceService), new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	err := s.AdminProcess(context.Background(), AdminProcessInput{
		RequestID: "req-1",
		AdminID:   "admin-1",
		Status:    repository.WithdrawalStatusPending,
	})

	require.ErrorIs(t, err, ErrInvalidWithdrawal)
}

func TestUpdateBusinessHours_Validation(t *testing.T) {
	s := newTestScheduler(&mocks.MockDatabase{}, new(mocks.MockBalanceService), new(mocks.MockBusinessHoursRepo), mondayAt(12, 0))

	cases := []struct {
		name string
		row  *repository.BusinessHourRow
	}{
		{"weekday too large", &repository.BusinessHourRow{Weekday: 7, StartHour: 9, EndHour: 16}},
		{"negative weekday", &repository.BusinessHourRow{Weekday: -1, StartHour: 9, EndHour: 16}},
		{"window inverted", &repository.BusinessHourRow{Weekday: 1, StartHour: 16, EndHour: 9}},
		{"empty window", &repository.BusinessHourRow{Weekday: 1, StartHour: 9, EndHour: 9}},
		{"end past midnight", &repository.BusinessHourRow{Weekday: 1, StartHour: 9, EndHour: 25}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.UpdateBusinessHours(context.Background(), tc.row, "admin-1", ledger.RequestMeta{})
			require.ErrorIs(t, err, ErrInvalidWithdrawal)
		})
	}
}

func TestUpdateBusinessHours_WritesOverrideAndAudits(t *testing.T) {
	hoursRepo := new(mocks.MockBusinessHoursRepo)
	hoursRepo.On("Upsert", mock.Anything).Return(nil)

	balances := new(mocks.MockBalanceService)
	balances.On("LogSecurityEvent", "business_hours_updated", "", "admin-1", repository.SeverityInfo).Return()

	s := newTestScheduler(&mocks.MockDatabase{}, balances, hoursRepo, mondayAt(12, 0))

	row := &repository.BusinessHourRow{Weekday: 5, StartHour: 10, EndHour: 13, IsActive: true}
	err := s.UpdateBusinessHours(context.Background(), row, "admin-1", ledger.RequestMeta{})

	require.NoError(t, err)
	require.Equal(t, "admin-1", row.UpdatedBy)
	hoursRepo.AssertExpectations(t)
	balances.AssertExpectations(t)
}

func TestRequestHashes_DistinctSecretsDistinctHashes(t *testing.T) {
	input := SubmitWithdrawalInput{
		UserID:             "user-1",
		Kind:               repository.WithdrawalKindUSDT,
		USDTAmount:         decimal.RequireFromString("25"),
		DestinationAddress: "Tabcdefghij1234567890",
	}
	at := mondayAt(12, 0)

	requestHash := requestIntegrityHash([]byte("request-secret"), input, at)
	verificationHash := securityVerificationHash([]byte("verification-secret"), input, at)

	require.NotEqual(t, requestHash, verificationHash)

	// same secret for both still yields different values; the two hashes
	// cover different canonical forms
	require.NotEqual(t,
		requestIntegrityHash([]byte("shared"), input, at),
		securityVerificationHash([]byte("shared"), input, at),
	)
}

func TestRequestIntegrityHash_Deterministic(t *testing.T) {
	input := SubmitWithdrawalInput{
		UserID:     "user-1",
		Kind:       repository.WithdrawalKindUSDT,
		USDTAmount: decimal.RequireFromString("25"),
	}
	at := mondayAt(12, 0)

	require.Equal(t,
		requestIntegrityHash([]byte("request-secret"), input, at),
		requestIntegrityHash([]byte("request-secret"), input, at),
	)
	require.NotEqual(t,
		requestIntegrityHash([]byte("request-secret"), input, at),
		requestIntegrityHash([]byte("request-secret"), input, at.Add(time.Second)),
	)
}

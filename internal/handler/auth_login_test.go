package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kehindemorol/vestra/internal/config"
	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/mocks"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/secret"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLedger(auditRepo repository.SecurityAuditRepository) *ledger.Ledger {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	secrets := secret.NewProvider("ledger-secret", "request-secret", "verification-secret")

	return ledger.New(&mocks.MockDatabase{AuditRepo: auditRepo}, secrets, logger, nil)
}

func testConfig() *config.Config {
	cfg := &config.Config{
		BaseURL:  "http://localhost",
		HttpPort: 8080,
	}
	cfg.Jwt.SecretKey = "test_secret"
	return cfg
}

func TestHandleAdminLogin_ValidCredentials(t *testing.T) {
	mockAdminRepo := new(mocks.MockAdminRepo)
	mockAuditRepo := new(mocks.MockSecurityAuditRepo)

	// bcrypt hash of "correctpassword"
	testAdmin := &repository.AdminUser{
		ID:             "admin-1",
		Email:          "admin@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.AdminAccountActiveStatus,
	}

	mockAdminRepo.On("GetByEmail", "admin@example.com").Return(testAdmin, true, nil)
	mockAuditRepo.On("Insert", mock.Anything).Return("audit-1", nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := errHandler.New("", "http://localhost", nil, logger)

	authHandler := NewAuthHandler(mockAdminRepo, testLedger(mockAuditRepo), errorHandler, testConfig())

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "correctpassword",
	})

	req, err := http.NewRequest("POST", "/auth/admin/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	authHandler.HandleAdminLogin(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]interface{}
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	require.Contains(t, response, "data")

	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "Expected response['data'] to be a map")

	require.Contains(t, data, "auth_token")
	require.Contains(t, data, "token_expiry")
	require.NotEmpty(t, data["auth_token"])

	mockAdminRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestHandleAdminLogin_WrongPassword(t *testing.T) {
	mockAdminRepo := new(mocks.MockAdminRepo)
	mockAuditRepo := new(mocks.MockSecurityAuditRepo)

	testAdmin := &repository.AdminUser{
		ID:             "admin-1",
		Email:          "admin@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.AdminAccountActiveStatus,
	}

	mockAdminRepo.On("GetByEmail", "admin@example.com").Return(testAdmin, true, nil)
	// the failed attempt must land in the audit log
	mockAuditRepo.On("Insert", mock.MatchedBy(func(entry *repository.SecurityAuditEntry) bool {
		return entry.EventType == "admin_login_failed"
	})).Return("audit-1", nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := errHandler.New("", "http://localhost", nil, logger)

	authHandler := NewAuthHandler(mockAdminRepo, testLedger(mockAuditRepo), errorHandler, testConfig())

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "wrongpassword",
	})

	req, err := http.NewRequest("POST", "/auth/admin/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	authHandler.HandleAdminLogin(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	mockAdminRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

func TestHandleAdminLogin_LockedAccount(t *testing.T) {
	mockAdminRepo := new(mocks.MockAdminRepo)
	mockAuditRepo := new(mocks.MockSecurityAuditRepo)

	testAdmin := &repository.AdminUser{
		ID:             "admin-1",
		Email:          "admin@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.AdminAccountLockedStatus,
	}

	mockAdminRepo.On("GetByEmail", "admin@example.com").Return(testAdmin, true, nil)
	mockAuditRepo.On("Insert", mock.MatchedBy(func(entry *repository.SecurityAuditEntry) bool {
		return entry.EventType == "locked_admin_login_attempt" && entry.Severity == repository.SeverityCritical
	})).Return("audit-1", nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := errHandler.New("", "http://localhost", nil, logger)

	authHandler := NewAuthHandler(mockAdminRepo, testLedger(mockAuditRepo), errorHandler, testConfig())

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "correctpassword",
	})

	req, err := http.NewRequest("POST", "/auth/admin/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	authHandler.HandleAdminLogin(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)

	mockAdminRepo.AssertExpectations(t)
	mockAuditRepo.AssertExpectations(t)
}

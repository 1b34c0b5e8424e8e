package handler

import (
	"net/http"
	"time"

	"github.com/kehindemorol/vestra/internal/config"
	"github.com/kehindemorol/vestra/internal/errHandler"
	"github.com/kehindemorol/vestra/internal/ledger"
	"github.com/kehindemorol/vestra/internal/repository"
	"github.com/kehindemorol/vestra/internal/request"
	"github.com/kehindemorol/vestra/internal/response"
	"github.com/kehindemorol/vestra/internal/validator"

	"github.com/cradoe/gopass"
	"github.com/pascaldekloe/jwt"
)

type authHandler struct {
	adminRepo  repository.AdminRepository
	ledger     *ledger.Ledger
	errHandler *errHandler.ErrorHandler
	config     *config.Config
}

func NewAuthHandler(adminRepo repository.AdminRepository, ledgerService *ledger.Ledger, errHandler *errHandler.ErrorHandler, config *config.Config) *authHandler {
	return &authHandler{
		adminRepo:  adminRepo,
		ledger:     ledgerService,
		errHandler: errHandler,
		config:     config,
	}
}

// Admin login is the only way to obtain a token for the processing
// endpoints. Failed attempts and locked-account hits land in the security
// audit log with the caller's IP.
func (h *authHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	admin, found, err := h.adminRepo.GetByEmail(input.Email)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(found, "Incorrect email/password")

	if found {
		passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, admin.HashedPassword)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}

		input.Validator.Check(validator.NotBlank(input.Password), "Password is required")
		input.Validator.Check(passwordMatches, "Incorrect email/password")

		if !passwordMatches {
			h.ledger.LogSecurityEvent(r.Context(), "admin_login_failed", "", admin.ID, map[string]any{
				"email": admin.Email,
			}, repository.SeverityWarning, requestMeta(r))
		}
	}

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	if admin.Status != repository.AdminAccountActiveStatus {
		h.ledger.LogSecurityEvent(r.Context(), "locked_admin_login_attempt", "", admin.ID, nil,
			repository.SeverityCritical, requestMeta(r))

		message := "Account has been locked. Please contact support"
		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return
	}

	var claims jwt.Claims
	claims.Subject = admin.ID

	expiry := time.Now().Add(24 * time.Hour)
	claims.Issued = jwt.NewNumericTime(time.Now())
	claims.NotBefore = jwt.NewNumericTime(time.Now())
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.config.BaseURL
	claims.Audiences = []string{h.config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.config.Jwt.SecretKey))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.ledger.LogSecurityEvent(r.Context(), "admin_login", "", admin.ID, nil,
		repository.SeverityInfo, requestMeta(r))

	data := map[string]string{
		"auth_token":   string(jwtBytes),
		"token_expiry": expiry.Format(time.RFC3339),
	}
	message := "Login succesful"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

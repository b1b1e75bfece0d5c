package handlers

import (
	"net/http"

	"civic-reports-service/auth"
	"civic-reports-service/database"
	"civic-reports-service/email"
	"civic-reports-service/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const tokenExpirySeconds = 3600 // 1 hour

// AccountsHandler handles registration and authentication.
type AccountsHandler struct {
	citizens    *database.CitizenService
	authorities *database.AuthorityService
	tokens      *auth.TokenService
	emails      *email.Sender
}

func NewAccountsHandler(
	citizens *database.CitizenService,
	authorities *database.AuthorityService,
	tokens *auth.TokenService,
	emails *email.Sender,
) *AccountsHandler {
	return &AccountsHandler{
		citizens:    citizens,
		authorities: authorities,
		tokens:      tokens,
		emails:      emails,
	}
}

// Register handles citizen registration.
func (h *AccountsHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	citizen, err := h.citizens.Register(c.Request.Context(), req)
	if err != nil {
		if err.Error() == "user already exists" {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create user"})
		return
	}

	if h.emails != nil {
		go h.emails.SendWelcomeEmail(citizen.Email, citizen.Name)
		h.sendVerificationCode(citizen.Email)
	}

	c.JSON(http.StatusCreated, citizen)
}

// sendVerificationCode issues an OTP and emails it, fire-and-forget.
func (h *AccountsHandler) sendVerificationCode(recipientEmail string) {
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		code, err := h.citizens.IssueOTP(ctx, recipientEmail)
		if err != nil {
			log.Warnf("Failed to issue verification code for %s: %v", recipientEmail, err)
			return
		}
		h.emails.SendOTPEmail(recipientEmail, code)
	}()
}

// VerifyOTP confirms a registration verification code.
func (h *AccountsHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.citizens.VerifyOTP(c.Request.Context(), req.Email, req.Code); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "email verified"})
}

// RegisterAuthority provisions an administrative actor. Restricted to admins
// by route middleware.
func (h *AccountsHandler) RegisterAuthority(c *gin.Context) {
	var req models.RegisterAuthorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleAdminHead {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid role"})
		return
	}
	if req.Level != models.LevelLow && req.Level != models.LevelMedium && req.Level != models.LevelHigh {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid level"})
		return
	}

	authority, err := h.authorities.RegisterAuthority(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	if h.emails != nil {
		go h.emails.SendWelcomeEmail(authority.Email, authority.Name)
	}

	c.JSON(http.StatusCreated, authority)
}

// Login authenticates a citizen or authority and returns a token pair. The
// role field selects the account kind; it defaults to citizen.
func (h *AccountsHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	var subjectID string
	var err error
	if role == models.RoleUser {
		subjectID, err = h.citizens.Authenticate(c.Request.Context(), req.Email, req.Password)
	} else {
		subjectID, err = h.authorities.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err == nil {
			// The stored role is authoritative, not the one the client sent.
			var authority *models.Authority
			if authority, err = h.authorities.GetAuthority(c.Request.Context(), subjectID); err == nil {
				role = authority.Role
			}
		}
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid credentials"})
		return
	}

	token, refreshToken, err := h.tokens.GenerateTokenPair(subjectID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to generate tokens"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Token:        token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    tokenExpirySeconds,
	})
}

// RefreshToken handles token refresh.
func (h *AccountsHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	subjectID, role, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid refresh token"})
		return
	}

	token, refreshToken, err := h.tokens.GenerateTokenPair(subjectID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		Token:        token,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    tokenExpirySeconds,
	})
}

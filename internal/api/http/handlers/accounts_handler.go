package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// AccountsHandler exposes registration, password reset and login.
type AccountsHandler struct {
	accounts *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accounts *service.AccountService) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

func parse(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(out)
}

func accepted(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"message": message}})
}

// RequestCode handles POST /accounts/code.
func (h *AccountsHandler) RequestCode(c *fiber.Ctx) error {
	var req dto.AccountCodeRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestAccountCode(c.UserContext(), req.Email, domain.ProfileType(req.ProfileType)); err != nil {
		return err
	}
	return accepted(c, "verification code sent")
}

// ConfirmCode handles POST /accounts/code/confirm.
func (h *AccountsHandler) ConfirmCode(c *fiber.Ctx) error {
	var req dto.CodeConfirmRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ConfirmAccountCode(c.UserContext(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"validated": true}})
}

// Create handles POST /accounts.
func (h *AccountsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAccountRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.CreateAccount(c.UserContext(), service.CreateAccountInput{
		Email:                req.Email,
		Code:                 req.Code,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		ProfileType:          domain.ProfileType(req.ProfileType),
		Phone:                req.Phone,
		BirthDate:            req.ParsedBirthDate(),
		Bio:                  req.Bio,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ForgotPassword handles POST /password/forgot.
func (h *AccountsHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.PasswordForgotRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.accounts.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		return err
	}
	return accepted(c, "if the address has an account, a reset code was sent")
}

// ConfirmResetCode handles POST /password/forgot/confirm.
func (h *AccountsHandler) ConfirmResetCode(c *fiber.Ctx) error {
	var req dto.CodeConfirmRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ConfirmPasswordResetCode(c.UserContext(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"validated": true}})
}

// ResetPassword handles POST /password/reset.
func (h *AccountsHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := h.accounts.ResetPassword(c.UserContext(), req.Email, req.Code, req.Password, req.PasswordConfirmation); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Login handles POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parse(c, &req); err != nil {
		return err
	}

	result, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.NewUserResponse(result.User),
			"auth": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt},
		},
	})
}

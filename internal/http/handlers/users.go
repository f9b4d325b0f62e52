package handlers

import (
	"net/http"

	"educrm/internal/auth"
	"educrm/internal/repo"
	"educrm/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserHandler manages staff and lead accounts
type UserHandler struct {
	userRepo    *repo.UserRepository
	authService *auth.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo *repo.UserRepository, authService *auth.Service) *UserHandler {
	return &UserHandler{userRepo: userRepo, authService: authService}
}

// CreateUserRequest is the payload for creating an account
type CreateUserRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=8"`
	Name     string     `json:"name" validate:"required"`
	Role     string     `json:"role" validate:"required,oneof=manager consultant receptionist lead"`
	OfficeID *uuid.UUID `json:"office_id"`
}

// Create godoc
// @Summary Create user
// @Description Create a staff or lead account. Managers can only create accounts in their own office.
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	role := c.Get("user_role").(string)
	if role == models.RoleManager {
		officeID, ok := c.Get("office_id").(uuid.UUID)
		if !ok {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Office context required"})
		}
		if req.OfficeID == nil || *req.OfficeID != officeID {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Cannot create users outside your office"})
		}
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to hash password"})
	}

	user := &models.User{
		Email:    req.Email,
		Password: hash,
		Name:     req.Name,
		Role:     req.Role,
		OfficeID: req.OfficeID,
		IsActive: true,
	}
	if err := h.userRepo.Create(user); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": "User already exists"})
	}

	return c.JSON(http.StatusCreated, user)
}

// ListByOffice godoc
// @Summary List office users
// @Description List active users of an office
// @Tags users
// @Produce json
// @Param office_id path string true "Office ID"
// @Success 200 {array} models.User
// @Failure 403 {object} map[string]string
// @Security ApiKeyAuth
// @Router /users/office/{office_id} [get]
func (h *UserHandler) ListByOffice(c echo.Context) error {
	officeID, err := uuid.Parse(c.Param("office_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid office id"})
	}

	role := c.Get("user_role").(string)
	if role != models.RoleSuperAdmin {
		own, ok := c.Get("office_id").(uuid.UUID)
		if !ok || own != officeID {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Cannot list users of another office"})
		}
	}

	users, err := h.userRepo.ListByOffice(officeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list users"})
	}

	return c.JSON(http.StatusOK, users)
}

package handlers

import (
	"net/http"

	"educrm/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// NotificationHandler exposes the notification inbox
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary List notifications
// @Description List the authenticated user's notifications, newest first
// @Tags notifications
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} models.PaginationResult[models.Notification]
// @Security ApiKeyAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	userID := c.Get("user_id").(uuid.UUID)
	limit, offset := pagination(c)

	page, err := h.notifications.ListByUser(userID, limit, offset)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, page)
}

// MarkRead godoc
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security ApiKeyAuth
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	userID := c.Get("user_id").(uuid.UUID)
	if err := h.notifications.MarkRead(id, userID); err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Security ApiKeyAuth
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID := c.Get("user_id").(uuid.UUID)

	count, err := h.notifications.CountUnread(userID)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

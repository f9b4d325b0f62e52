package services

import (
	"educrm/internal/chat"
	"educrm/internal/repo"
	"educrm/pkg/apperrors"
	"educrm/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// NotificationService persists notifications and pushes them to the owner's
// live connections. It implements chat.Notifier: sends are asynchronous and
// best-effort, so a failed notification never fails the operation that
// triggered it.
type NotificationService struct {
	repo       *repo.NotificationRepository
	dispatcher chat.Dispatcher
	log        zerolog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo *repo.NotificationRepository, dispatcher chat.Dispatcher, log zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, dispatcher: dispatcher, log: log}
}

// SendNotification persists the notification and emits notification_received
// to the target user. Runs in its own goroutine; errors are logged only.
func (s *NotificationService) SendNotification(n chat.Notification) {
	go func() {
		notification := &models.Notification{
			UserID:  n.UserID,
			Type:    n.Type,
			Message: n.Message,
			Details: models.Metadata(n.Details),
		}
		if err := s.repo.Create(notification); err != nil {
			s.log.Error().Err(err).
				Str("user_id", n.UserID.String()).
				Str("type", n.Type).
				Msg("Failed to persist notification")
			return
		}
		s.dispatcher.EmitToUser(n.UserID, "notification_received", notification)
	}()
}

// MarkRead marks a notification as read for its owner
func (s *NotificationService) MarkRead(id, userID uuid.UUID) error {
	if err := s.repo.MarkRead(id, userID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("notification not found")
		}
		return apperrors.Internal("failed to mark notification read", err)
	}
	return nil
}

// ListByUser lists a user's notifications
func (s *NotificationService) ListByUser(userID uuid.UUID, limit, offset int) (models.PaginationResult[models.Notification], error) {
	page, err := s.repo.ListByUser(userID, limit, offset)
	if err != nil {
		return models.PaginationResult[models.Notification]{}, apperrors.Internal("failed to list notifications", err)
	}
	return page, nil
}

// CountUnread counts a user's unread notifications
func (s *NotificationService) CountUnread(userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	return count, nil
}

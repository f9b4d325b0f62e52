package app

import (
	"educrm/internal/auth"
	"educrm/internal/chat"
	"educrm/internal/repo"
	"educrm/internal/services"
	"educrm/internal/ws"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB                  *gorm.DB
	AuthService         *auth.Service
	UserRepo            *repo.UserRepository
	ConversationRepo    *repo.ConversationRepository
	ParticipantRepo     *repo.ParticipantRepository
	MessageRepo         *repo.MessageRepository
	NotificationRepo    *repo.NotificationRepository
	ChatService         *chat.Service
	NotificationService *services.NotificationService
	StorageService      *services.StorageService
	Hub                 *ws.Hub
	Router              *ws.Router
	Typing              *ws.TypingCoordinator
	Gateway             *ws.Gateway
}

// NewServices wires the application graph. The realtime layer is built
// bottom-up: hub, router and typing coordinator first, then the services
// that dispatch through them, then the gateway that feeds them.
func NewServices(db *gorm.DB) *Services {
	userRepo := repo.NewUserRepository(db)
	conversationRepo := repo.NewConversationRepository(db)
	participantRepo := repo.NewParticipantRepository(db)
	messageRepo := repo.NewMessageRepository(db)
	notificationRepo := repo.NewNotificationRepository(db)

	authService := auth.NewService(userRepo)

	hub := ws.NewHub()
	router := ws.NewRouter(hub, log.Logger)
	typing := ws.NewTypingCoordinator(router, ws.DefaultTypingTTL)

	notificationService := services.NewNotificationService(notificationRepo, router, log.Logger)

	chatService := chat.NewService(
		conversationRepo,
		participantRepo,
		messageRepo,
		userRepo,
		router,
		hub,
		notificationService,
		log.Logger,
	)

	// Storage is optional: without S3 credentials the file upload events
	// answer with an error envelope and everything else still works
	storageService, err := services.NewStorageService()
	if err != nil {
		log.Warn().Err(err).Msg("Storage service disabled")
		storageService = nil
	}

	gateway := ws.NewGateway(hub, router, typing, chatService, notificationService, storageService, authService, log.Logger)

	return &Services{
		DB:                  db,
		AuthService:         authService,
		UserRepo:            userRepo,
		ConversationRepo:    conversationRepo,
		ParticipantRepo:     participantRepo,
		MessageRepo:         messageRepo,
		NotificationRepo:    notificationRepo,
		ChatService:         chatService,
		NotificationService: notificationService,
		StorageService:      storageService,
		Hub:                 hub,
		Router:              router,
		Typing:              typing,
		Gateway:             gateway,
	}
}

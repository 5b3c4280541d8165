package di

import (
	"time"

	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/handler"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/service"
	"github.com/prohmpiriya/seat-rush/pkg/database"
	"github.com/prohmpiriya/seat-rush/pkg/redis"
)

// Container holds all dependencies for the reservation service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	TicketRepo  repository.TicketRepository
	CatalogRepo repository.CatalogRepository
	HoldRepo    *repository.RedisHoldRepository
	CartRepo    repository.CartRepository

	// Collaborators
	Gateway        gateway.PaymentGateway
	EventPublisher service.EventPublisher

	// Services
	HoldService     service.TicketHoldService
	CartService     service.CartService
	CheckoutService service.CheckoutService
	TicketService   service.TicketService

	// Handlers
	HealthHandler  *handler.HealthHandler
	CartHandler    *handler.CartHandler
	PaymentHandler *handler.PaymentHandler
	TicketHandler  *handler.TicketHandler
	AdminHandler   *handler.AdminHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB                *database.PostgresDB
	Redis             *redis.Client
	Gateway           gateway.PaymentGateway
	EventPublisher    service.EventPublisher
	Currency          string
	MaxTicketsPerCart int
	HoldTTL           time.Duration
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	holdTTL := cfg.HoldTTL
	if holdTTL <= 0 {
		holdTTL = domain.CartTTL
	}

	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Gateway:        cfg.Gateway,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize repositories
	c.TicketRepo = repository.NewPostgresTicketRepository(c.DB.Pool())
	c.CatalogRepo = repository.NewPostgresCatalogRepository(c.DB.Pool())
	c.HoldRepo = repository.NewRedisHoldRepository(c.Redis)
	c.CartRepo = repository.NewRedisCartRepository(c.Redis)

	// Initialize services
	c.HoldService = service.NewTicketHoldService(c.HoldRepo, holdTTL)
	validator := service.NewRuleValidator(c.TicketRepo, c.CatalogRepo, cfg.MaxTicketsPerCart, nil)
	c.CartService = service.NewCartService(
		c.CartRepo,
		c.TicketRepo,
		c.CatalogRepo,
		c.HoldService,
		validator,
		c.Gateway,
		&service.CartServiceConfig{CartTTL: holdTTL},
	)
	c.CheckoutService = service.NewCheckoutService(
		c.CartService,
		c.CartRepo,
		c.HoldRepo,
		c.TicketRepo,
		c.CatalogRepo,
		c.HoldService,
		c.Gateway,
		c.EventPublisher,
		&service.CheckoutServiceConfig{Currency: cfg.Currency},
	)
	c.TicketService = service.NewTicketService(c.TicketRepo, c.CatalogRepo, c.HoldRepo, c.EventPublisher, nil)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.CartHandler = handler.NewCartHandler(c.CartService)
	c.PaymentHandler = handler.NewPaymentHandler(c.CheckoutService)
	c.TicketHandler = handler.NewTicketHandler(c.TicketService)
	c.AdminHandler = handler.NewAdminHandler(c.TicketService)

	return c
}

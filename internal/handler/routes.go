package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/adapters/calendar"
	httpadapter "github.com/ClareAI/astra-voice-tools/internal/adapters/http"
	"github.com/ClareAI/astra-voice-tools/internal/calendarlink"
	"github.com/ClareAI/astra-voice-tools/internal/config"
	"github.com/ClareAI/astra-voice-tools/internal/core/outbox"
	"github.com/ClareAI/astra-voice-tools/internal/core/tool"
	"github.com/ClareAI/astra-voice-tools/internal/prompts"
	"github.com/ClareAI/astra-voice-tools/internal/repository"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
	"github.com/ClareAI/astra-voice-tools/pkg/gcs"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/ClareAI/astra-voice-tools/pkg/pubsub"
	"github.com/ClareAI/astra-voice-tools/pkg/redis"
	"github.com/ClareAI/astra-voice-tools/pkg/twilio"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	eventSource     = "astra-voice-tools"
	outboxNamespace = "sms"
)

// ToolService dispatches tool calls and lists the tools it serves
type ToolService interface {
	ToolExecutor
	ToolCatalog
}

// Components are the services the HTTP layer routes to
type Components struct {
	Repositories repository.RepositoryManager
	Onboarding   OnboardingService
	Tools        ToolService
	Calendar     CalendarAuthorizer
	Outbox       NotificationOutbox
}

// HandlerManager manages all handlers and the services behind them
type HandlerManager struct {
	config      *config.ToolsServiceConfig
	components  Components
	redeliverer *outbox.Redeliverer
	closers     []func() error
}

// NewHandlerManager creates and initializes all services from configuration
func NewHandlerManager(ctx context.Context, cfg *config.ToolsServiceConfig) (*HandlerManager, error) {
	hm := &HandlerManager{config: cfg}

	repoManager, err := repository.NewRepositoryManager(cfg.DBDriver)
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}
	hm.closers = append(hm.closers, repoManager.Close)

	sms := twilio.NewSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.SMSRatePerSecond, cfg.SMSBurst)
	if !sms.IsEnabled() {
		logger.Base().Warn("twilio credentials not set, SMS delivery disabled")
	}

	box := outbox.New(hm.outboxStore(), sms, cfg.OutboxMaxAttempts, cfg.CollaboratorTimeout)

	svc, err := onboarding.NewService(onboarding.Config{
		PaymentLinkBaseURL:  cfg.PaymentLinkBaseURL,
		ReconfirmPolicy:     cfg.ReconfirmPolicy,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	}, onboarding.Dependencies{
		Clients:      repoManager.Clients(),
		Notifier:     sms,
		Provisioner:  httpadapter.NewVapiClient(cfg.Vapi, cfg.CollaboratorTimeout),
		PhoneNumbers: phoneAssigner(cfg),
		Workflows:    prompts.NewWorkflowBuilder(cfg.Vapi.SMSToolID, cfg.CalendarTimeZone),
		Archive:      hm.workflowArchive(ctx),
		Events:       hm.eventPublisher(ctx),
		Outbox:       box,
	})
	if err != nil {
		hm.Close()
		return nil, err
	}
	box.OnDelivered(svc.HandleRedelivered)

	googleCalendar := calendar.NewGoogleCalendar(calendar.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		CalendarID:   cfg.CalendarID,
		TimeZone:     cfg.CalendarTimeZone,
	}, repoManager.OAuthTokens())

	tools, err := tool.NewToolManager(tool.Dependencies{
		Calendar:      googleCalendar,
		SMS:           sms,
		Onboarding:    svc,
		CallSummaries: repoManager.CallSummaries(),
		Links:         &calendarlink.Codec{Now: time.Now, Location: loadLocation(cfg.CalendarTimeZone)},
		Business: tool.BusinessProfile{
			Name:          cfg.BusinessDisplayName,
			OwnerPhone:    cfg.BusinessOwnerPhone,
			AssistantName: cfg.AssistantName,
		},
		TimeZone: cfg.CalendarTimeZone,
		Timeout:  cfg.CollaboratorTimeout,
	})
	if err != nil {
		hm.Close()
		return nil, err
	}

	redeliverer, err := outbox.NewRedeliverer(box, cfg.OutboxDrainSchedule, 0)
	if err != nil {
		hm.Close()
		return nil, err
	}
	hm.redeliverer = redeliverer

	hm.components = Components{
		Repositories: repoManager,
		Onboarding:   svc,
		Tools:        tools,
		Calendar:     googleCalendar,
		Outbox:       box,
	}
	return hm, nil
}

// NewHandlerManagerWithComponents builds a handler manager around already constructed services
func NewHandlerManagerWithComponents(cfg *config.ToolsServiceConfig, components Components) *HandlerManager {
	return &HandlerManager{config: cfg, components: components}
}

func (hm *HandlerManager) outboxStore() outbox.Store {
	cfg := hm.config
	if !cfg.RedisEnabled() {
		logger.Base().Warn("REDIS_HOST not set, notification outbox kept in memory")
		return outbox.NewMemoryStore()
	}

	redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Base().Warn("failed to initialize redis service, notification outbox kept in memory", zap.Error(err))
		return outbox.NewMemoryStore()
	}
	hm.closers = append(hm.closers, redisSvc.Close)
	logger.Base().Info("notification outbox backed by redis", zap.String("host", cfg.RedisHost))
	return outbox.NewRedisStore(redisSvc, outboxNamespace)
}

func (hm *HandlerManager) eventPublisher(ctx context.Context) pubsub.Publisher {
	cfg := hm.config
	if cfg.PubSubProjectID == "" {
		logger.Base().Info("PUBSUB_PROJECT_ID not set, lifecycle events disabled")
		return pubsub.NoopPublisher{}
	}

	publisher, err := pubsub.NewPubSubService(ctx, &pubsub.PubSubConfig{
		ProjectID: cfg.PubSubProjectID,
		TopicName: cfg.PubSubTopic,
		Source:    eventSource + "/" + cfg.InstanceID,
	})
	if err != nil {
		logger.Base().Warn("failed to initialize pubsub, lifecycle events disabled", zap.Error(err))
		return pubsub.NoopPublisher{}
	}
	hm.closers = append(hm.closers, publisher.Close)
	return publisher
}

func (hm *HandlerManager) workflowArchive(ctx context.Context) onboarding.WorkflowArchiver {
	cfg := hm.config
	if cfg.WorkflowArchiveBucket == "" {
		return nil
	}

	client, err := gcs.NewGCSClient(ctx, cfg.WorkflowArchiveBucket)
	if err != nil {
		logger.Base().Warn("failed to initialize workflow archive, continuing without it", zap.Error(err))
		return nil
	}
	hm.closers = append(hm.closers, client.Close)
	logger.Base().Info("workflow archive enabled", zap.String("bucket", cfg.WorkflowArchiveBucket))
	return client
}

func phoneAssigner(cfg *config.ToolsServiceConfig) onboarding.PhoneNumberAssigner {
	if cfg.Vapi.PhoneAssignmentMode == config.PhoneAssignmentVapi {
		return httpadapter.NewVapiClient(cfg.Vapi, cfg.CollaboratorTimeout)
	}
	return httpadapter.NewMockPhoneNumberAssigner(cfg.Vapi.MockAreaCode, time.Now().UnixNano())
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Base().Warn("unknown time zone, using local time", zap.String("time_zone", name), zap.Error(err))
		return time.Local
	}
	return loc
}

// SetupAllRoutes sets up all routes with middleware
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	// Apply global middleware
	if hm.config.EnableCORS {
		router.Use(CORSMiddleware)
		// Preflight requests must match a route for the middleware to run
		router.Methods(http.MethodOptions).HandlerFunc(handleCORS)
	}
	router.Use(GlobalLoggingMiddleware)

	NewHealthHandler(hm.components.Repositories).SetupHealthRoutes(router)

	if hm.components.Calendar != nil {
		NewOAuthHandler(hm.components.Calendar).SetupOAuthRoutes(router)
	}

	// The tool-call webhook answers every body with a results envelope, so it skips content-type validation
	NewToolCallHandler(hm.components.Tools).SetupToolCallRoutes(router)

	webhooks := router.NewRoute().Subrouter()
	webhooks.Use(ValidationMiddleware)
	NewOnboardingHandler(hm.components.Onboarding).SetupOnboardingRoutes(webhooks)

	if hm.config.StripeWebhookSecret != "" {
		NewStripeWebhookHandler(hm.components.Onboarding, hm.config.StripeWebhookSecret).SetupStripeRoutes(router)
	} else {
		logger.Base().Warn("STRIPE_WEBHOOK_SECRET not set, /webhook/stripe disabled")
	}

	hm.SetupAPIRoutes(router)

	logger.Base().Info("all application routes registered")
}

// SetupAPIRoutes sets up the operator API behind the API key middleware
func (hm *HandlerManager) SetupAPIRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(APIKeyMiddleware(hm.config.SecretKey))

	NewOperatorHandler(hm.components.Onboarding, hm.components.Outbox, hm.components.Tools).SetupOperatorRoutes(apiRouter)

	if hm.config.SecretKey == "" {
		logger.Base().Warn("SECRET_KEY not set, operator api is unauthenticated")
	}
	logger.Base().Info("operator api routes registered")
}

// StartBackgroundJobs starts the outbox redelivery schedule
func (hm *HandlerManager) StartBackgroundJobs() {
	if hm.redeliverer != nil {
		hm.redeliverer.Start()
	}
}

// Close stops background jobs and releases connections
func (hm *HandlerManager) Close() error {
	if hm.redeliverer != nil {
		hm.redeliverer.Stop()
	}

	var errs []error
	for i := len(hm.closers) - 1; i >= 0; i-- {
		if err := hm.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	hm.closers = nil
	return errors.Join(errs...)
}

// Handler returns the fully routed HTTP handler
func (hm *HandlerManager) Handler() http.Handler {
	router := mux.NewRouter()
	hm.SetupAllRoutes(router)
	return router
}

// GetRepoManager returns the repository manager
func (hm *HandlerManager) GetRepoManager() repository.RepositoryManager {
	return hm.components.Repositories
}

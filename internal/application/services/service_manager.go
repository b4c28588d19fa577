package services

import (
	"context"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/internal/infrastructure/realtime"
	"github.com/nexuscrm/salescrm/pkg/auth"
)

// Dependencies are the adapters the services are built on. Optional
// adapters must be left as untyped nil when not configured.
type Dependencies struct {
	Conn      *database.Connection
	Blobs     ports.BlobStore
	Index     ports.SearchIndex
	Cache     ports.Cache
	Completer ports.Completer
	Relay     ports.ChangeRelay
	Tokens    *auth.TokenManager
	Config    *config.Config
}

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	conn *database.Connection

	// Core services
	TxManager *persistence.TransactionManager
	EventBus  *EventBus
	Hub       *realtime.Hub
	Schema    *persistence.SchemaRepository

	Auth       *AuthService
	Contacts   *ContactService
	Companies  *CompanyService
	Deals      *DealService
	Activities *ActivityService
	Tasks      *TaskService
	Documents  *DocumentService
	Dashboard  *DashboardService
	Email      *EmailDraftService
	Search     *SearchService
	Reports    *ReportService
	Scheduler  *SchedulerService

	unsubscribe []func()
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(deps Dependencies) *ServiceManager {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	sm := &ServiceManager{conn: deps.Conn}

	base := persistence.NewRecordRepository(deps.Conn)
	users := persistence.NewUserRepository(base)
	contacts := persistence.NewContactRepository(base)
	companies := persistence.NewCompanyRepository(base)
	deals := persistence.NewDealRepository(base)
	activities := persistence.NewActivityRepository(base)
	tasks := persistence.NewTaskRepository(base)
	documents := persistence.NewDocumentRepository(base)
	queries := persistence.NewQueryRepository(base)

	// Initialize services in dependency order
	sm.TxManager = persistence.NewTransactionManager(deps.Conn)
	sm.EventBus = NewEventBus()
	sm.Hub = realtime.NewHub(deps.Relay)
	sm.Schema = persistence.NewSchemaRepository(deps.Conn)

	sm.Auth = NewAuthService(users, deps.Tokens, cfg.Auth.AllowRegistration)
	sm.Contacts = NewContactService(contacts, sm.EventBus)
	sm.Companies = NewCompanyService(companies, sm.EventBus)
	sm.Deals = NewDealService(deals, activities, sm.TxManager, sm.EventBus)
	sm.Activities = NewActivityService(activities, sm.EventBus)
	sm.Tasks = NewTaskService(tasks, sm.EventBus)
	sm.Documents = NewDocumentService(documents, deps.Blobs, sm.EventBus, cfg.Storage.MaxUpload, cfg.Storage.URLExpiry)
	sm.Dashboard = NewDashboardService(deals, activities, tasks, deps.Cache, cfg.Dashboard.CacheTTL)
	sm.Email = NewEmailDraftService(contacts, companies, deals, activities, deps.Completer, sm.EventBus)
	sm.Search = NewSearchService(deps.Index, queries, users, contacts, companies, deals)
	sm.Reports = NewReportService(NewSecurityValidator(cfg.Reports.MaxRows), queries)

	var reindexer Reindexer
	if deps.Index != nil {
		reindexer = sm.Search
	}
	sm.Scheduler = NewSchedulerService(tasks, sm.EventBus, reindexer)

	sm.registerHandlers()
	return sm
}

// registerHandlers fans committed changes out to realtime subscribers, the
// search index and the dashboard cache.
func (sm *ServiceManager) registerHandlers() {
	sm.unsubscribe = append(sm.unsubscribe,
		sm.EventBus.Subscribe(events.RecordChanged, sm.Hub.Publish),
		sm.EventBus.Subscribe(events.RecordChanged, sm.Search.HandleChange),
		sm.EventBus.Subscribe(events.RecordChanged, sm.Dashboard.Invalidate),
		sm.EventBus.Subscribe(events.TaskDue, sm.Hub.Publish),
	)
}

// StartBackground runs the realtime relay pump and, when enabled, the
// scheduler. It returns once both are started.
func (sm *ServiceManager) StartBackground(ctx context.Context, scheduler config.SchedulerConfig) error {
	// the hub logs a relay failure and keeps delivering locally
	go func() { _ = sm.Hub.Run(ctx) }()
	if !scheduler.Enabled {
		return nil
	}
	return sm.Scheduler.Start(scheduler.ReminderSpec, scheduler.ReindexSpec)
}

// Ping checks the database connection.
func (sm *ServiceManager) Ping(ctx context.Context) error {
	return sm.conn.PingContext(ctx)
}

// Close detaches the event handlers, stops the scheduler and waits for
// background indexing.
func (sm *ServiceManager) Close(ctx context.Context) {
	sm.Scheduler.Stop(ctx)
	for _, unsubscribe := range sm.unsubscribe {
		unsubscribe()
	}
	sm.unsubscribe = nil
	sm.Search.Wait()
}

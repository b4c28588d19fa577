package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/infrastructure/storage"
	"github.com/nexuscrm/salescrm/internal/interfaces/middleware"
	"github.com/nexuscrm/salescrm/pkg/auth"
)

// RouterOptions carries what the routes need beyond the services.
type RouterOptions struct {
	Tokens      *auth.TokenManager
	CORSOrigins []string
	MaxUpload   int64
	// Files serves local-store downloads; nil when blobs live in S3.
	Files *storage.LocalStore
}

// NewRouter builds the HTTP API.
func NewRouter(svcMgr *services.ServiceManager, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Cors(opts.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := svcMgr.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(svcMgr.Auth)
	contactHandler := NewContactHandler(svcMgr.Contacts, svcMgr.Activities)
	companyHandler := NewCompanyHandler(svcMgr.Companies, svcMgr.Contacts, svcMgr.Activities)
	dealHandler := NewDealHandler(svcMgr.Deals, svcMgr.Activities)
	activityHandler := NewActivityHandler(svcMgr.Activities)
	taskHandler := NewTaskHandler(svcMgr.Tasks)
	documentHandler := NewDocumentHandler(svcMgr.Documents, opts.MaxUpload)
	dashboardHandler := NewDashboardHandler(svcMgr.Dashboard)
	emailHandler := NewEmailHandler(svcMgr.Email)
	searchHandler := NewSearchHandler(svcMgr.Search)
	reportHandler := NewReportHandler(svcMgr.Reports)
	realtimeHandler := NewRealtimeHandler(svcMgr.Hub)

	requireAuth := middleware.RequireAuth(opts.Tokens)
	requireAdmin := middleware.RequireAdmin()

	api := router.Group("/api")
	{
		// Public Auth routes (no authentication required)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/register", authHandler.Register)
			authGroup.GET("/me", requireAuth, authHandler.GetMe)
			authGroup.PATCH("/me", requireAuth, authHandler.UpdateMe)
		}

		if opts.Files != nil {
			api.GET("/files/:token", NewFileHandler(opts.Files).Serve)
		}

		protected := api.Group("")
		protected.Use(requireAuth)

		protected.GET("/users", requireAdmin, authHandler.ListUsers)

		contacts := protected.Group("/contacts")
		{
			contacts.GET("", contactHandler.List)
			contacts.POST("", contactHandler.Create)
			contacts.GET("/:id", contactHandler.Get)
			contacts.PATCH("/:id", contactHandler.Update)
			contacts.DELETE("/:id", contactHandler.Delete)
			contacts.GET("/:id/timeline", contactHandler.Timeline)
		}

		companies := protected.Group("/companies")
		{
			companies.GET("", companyHandler.List)
			companies.POST("", companyHandler.Create)
			companies.GET("/:id", companyHandler.Get)
			companies.PATCH("/:id", companyHandler.Update)
			companies.DELETE("/:id", companyHandler.Delete)
			companies.GET("/:id/contacts", companyHandler.Contacts)
			companies.GET("/:id/timeline", companyHandler.Timeline)
		}

		deals := protected.Group("/deals")
		{
			deals.GET("", dealHandler.List)
			deals.POST("", dealHandler.Create)
			deals.GET("/:id", dealHandler.Get)
			deals.PATCH("/:id", dealHandler.Update)
			deals.DELETE("/:id", dealHandler.Delete)
			deals.POST("/:id/stage", dealHandler.MoveStage)
			deals.GET("/:id/timeline", dealHandler.Timeline)
		}
		protected.GET("/pipeline", dealHandler.Pipeline)

		activities := protected.Group("/activities")
		{
			activities.GET("", activityHandler.List)
			activities.POST("", activityHandler.Create)
			activities.GET("/:id", activityHandler.Get)
			activities.PATCH("/:id", activityHandler.Update)
			activities.DELETE("/:id", activityHandler.Delete)
		}

		tasks := protected.Group("/tasks")
		{
			tasks.GET("", taskHandler.List)
			tasks.POST("", taskHandler.Create)
			tasks.GET("/:id", taskHandler.Get)
			tasks.PATCH("/:id", taskHandler.Update)
			tasks.DELETE("/:id", taskHandler.Delete)
			tasks.POST("/:id/complete", taskHandler.Complete)
			tasks.POST("/:id/reopen", taskHandler.Reopen)
		}

		documents := protected.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.POST("", documentHandler.Upload)
			documents.GET("/:id/download", documentHandler.Download)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		protected.GET("/dashboard/summary", dashboardHandler.Summary)
		protected.POST("/email/draft", emailHandler.Draft)
		protected.GET("/search", searchHandler.Search)
		protected.POST("/reports/query", reportHandler.Query)
		protected.GET("/realtime/stream", realtimeHandler.Stream)
	}

	return router
}

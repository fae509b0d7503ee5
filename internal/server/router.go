package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ghprograms/programs-backend/internal/handlers"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/middleware"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *middleware.AuthMiddleware

	AuthHandler           *handlers.AuthHandler
	UserHandler           *handlers.UserHandler
	RealtimeHandler       *handlers.RealtimeHandler
	ProgramHandler        *handlers.ProgramHandler
	PhaseHandler          *handlers.PhaseHandler
	LessonHandler         *handlers.LessonHandler
	AssessmentHandler     *handlers.AssessmentHandler
	EnrollmentHandler     *handlers.EnrollmentHandler
	ProgressHandler       *handlers.ProgressHandler
	ChatHandler           *handlers.ChatHandler
	WellnessHandler       *handlers.WellnessHandler
	PropertyHandler       *handlers.PropertyHandler
	RelationshipHandler   *handlers.RelationshipHandler
	ResourceHandler       *handlers.ResourceHandler
	CertificateHandler    *handlers.CertificateHandler
	RecommendationHandler *handlers.RecommendationHandler
	JobHandler            *handlers.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.AttachRequestContext())
	r.Use(middleware.AttachTraceContext())
	r.Use(otelgin.Middleware("programs-backend"))
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS())

	r.GET("/healthcheck", handlers.HealthCheck)

	api := r.Group("/api")
	{
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/refresh", cfg.AuthHandler.Refresh)
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
			protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
			protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
		}

		if cfg.UserHandler != nil {
			protected.GET("/user", cfg.UserHandler.GetMe)
			protected.PATCH("/user/name", cfg.UserHandler.UpdateName)
			protected.POST("/user/avatar", cfg.UserHandler.UploadAvatar)
			protected.GET("/user/organizations", cfg.UserHandler.ListMyOrganizations)
			protected.GET("/user/events", cfg.UserHandler.ListMyEvents)
		}

		// Catalog: reads for any authenticated member, writes gated by
		// coach/owner role inside the services.
		if cfg.ProgramHandler != nil {
			protected.GET("/programs", cfg.ProgramHandler.ListCatalog)
			protected.GET("/programs/:id", cfg.ProgramHandler.GetProgramDetail)
			protected.POST("/programs", cfg.ProgramHandler.CreateProgram)
			protected.PATCH("/programs/:id", cfg.ProgramHandler.UpdateProgram)
			protected.DELETE("/programs/:id", cfg.ProgramHandler.DeleteProgram)
			protected.POST("/programs/:id/publish", cfg.ProgramHandler.PublishProgram)
			protected.POST("/programs/:id/unpublish", cfg.ProgramHandler.UnpublishProgram)
			protected.POST("/programs/:id/phases/reorder", cfg.ProgramHandler.ReorderPhases)
		}

		if cfg.PhaseHandler != nil {
			protected.POST("/phases", cfg.PhaseHandler.CreatePhase)
			protected.PATCH("/phases/:id", cfg.PhaseHandler.UpdatePhase)
			protected.DELETE("/phases/:id", cfg.PhaseHandler.DeletePhase)
			protected.POST("/phases/:id/lessons/reorder", cfg.PhaseHandler.ReorderLessons)
		}

		if cfg.LessonHandler != nil {
			protected.POST("/lessons", cfg.LessonHandler.CreateLesson)
			protected.PATCH("/lessons/:id", cfg.LessonHandler.UpdateLesson)
			protected.DELETE("/lessons/:id", cfg.LessonHandler.DeleteLesson)
			protected.POST("/lessons/:id/tactics/reorder", cfg.LessonHandler.ReorderTactics)
			protected.POST("/tactics", cfg.LessonHandler.CreateTactic)
			protected.PATCH("/tactics/:id", cfg.LessonHandler.UpdateTactic)
			protected.DELETE("/tactics/:id", cfg.LessonHandler.DeleteTactic)
		}

		if cfg.AssessmentHandler != nil {
			protected.PUT("/lessons/:id/assessment", cfg.AssessmentHandler.UpsertAssessment)
			protected.GET("/lessons/:id/assessment", cfg.AssessmentHandler.GetAssessment)
			protected.DELETE("/lessons/:id/assessment", cfg.AssessmentHandler.DeleteAssessment)
		}

		if cfg.EnrollmentHandler != nil {
			protected.POST("/programs/:id/enroll", cfg.EnrollmentHandler.Enroll)
			protected.POST("/programs/:id/enroll-member", cfg.EnrollmentHandler.EnrollMember)
			protected.GET("/enrollments", cfg.EnrollmentHandler.ListMyEnrollments)
			protected.POST("/enrollments/:id/pause", cfg.EnrollmentHandler.Pause)
			protected.POST("/enrollments/:id/resume", cfg.EnrollmentHandler.Resume)
			protected.POST("/enrollments/:id/cancel", cfg.EnrollmentHandler.Cancel)
		}

		if cfg.ProgressHandler != nil {
			protected.POST("/lessons/:id/open", cfg.ProgressHandler.OpenLesson)
			protected.POST("/lessons/:id/video-progress", cfg.ProgressHandler.RecordVideoProgress)
			protected.POST("/lessons/:id/complete", cfg.ProgressHandler.MarkLessonComplete)
			protected.GET("/lessons/:id/progress", cfg.ProgressHandler.GetLessonProgress)
			protected.POST("/tactics/:id/complete", cfg.ProgressHandler.CompleteTactic)
			protected.POST("/tactics/:id/uncomplete", cfg.ProgressHandler.UncompleteTactic)
			protected.POST("/assessments/:id/submit", cfg.ProgressHandler.SubmitAssessment)
			protected.GET("/programs/:id/progress", cfg.ProgressHandler.GetProgramProgress)
		}

		if cfg.ChatHandler != nil {
			protected.POST("/chat/threads", cfg.ChatHandler.CreateThread)
			protected.GET("/chat/threads", cfg.ChatHandler.ListThreads)
			protected.GET("/chat/threads/:id", cfg.ChatHandler.GetThread)
			protected.DELETE("/chat/threads/:id", cfg.ChatHandler.DeleteThread)
			protected.POST("/chat/threads/:id/messages", cfg.ChatHandler.SendMessage)
		}

		if cfg.WellnessHandler != nil {
			protected.PUT("/wellness/entries", cfg.WellnessHandler.UpsertEntry)
			protected.GET("/wellness/entries", cfg.WellnessHandler.ListEntries)
			protected.DELETE("/wellness/entries/:id", cfg.WellnessHandler.DeleteEntry)
			protected.GET("/wellness/summary", cfg.WellnessHandler.GetSummary)
		}

		if cfg.PropertyHandler != nil {
			protected.POST("/properties", cfg.PropertyHandler.CreateProperty)
			protected.GET("/properties", cfg.PropertyHandler.ListProperties)
			protected.PATCH("/properties/:id", cfg.PropertyHandler.UpdateProperty)
			protected.DELETE("/properties/:id", cfg.PropertyHandler.DeleteProperty)
			protected.GET("/properties/summary", cfg.PropertyHandler.GetPortfolioSummary)
		}

		if cfg.RelationshipHandler != nil {
			protected.POST("/relationship/checkins", cfg.RelationshipHandler.CreateCheckin)
			protected.GET("/relationship/checkins", cfg.RelationshipHandler.ListCheckins)
			protected.PATCH("/relationship/checkins/:id", cfg.RelationshipHandler.UpdateCheckin)
			protected.DELETE("/relationship/checkins/:id", cfg.RelationshipHandler.DeleteCheckin)
			protected.GET("/relationship/summary", cfg.RelationshipHandler.GetSummary)
		}

		if cfg.ResourceHandler != nil {
			protected.POST("/lessons/:id/resources", cfg.ResourceHandler.UploadResource)
			protected.POST("/lessons/:id/resources/link", cfg.ResourceHandler.CreateLinkResource)
			protected.GET("/lessons/:id/resources", cfg.ResourceHandler.ListResources)
			protected.DELETE("/resources/:id", cfg.ResourceHandler.DeleteResource)
			protected.GET("/resources/:id/transcript", cfg.ResourceHandler.GetTranscript)
		}

		if cfg.CertificateHandler != nil {
			protected.GET("/certificates", cfg.CertificateHandler.ListMyCertificates)
			protected.GET("/enrollments/:id/certificate", cfg.CertificateHandler.GetByEnrollment)
		}

		if cfg.RecommendationHandler != nil {
			protected.GET("/programs/:id/recommendations", cfg.RecommendationHandler.RecommendNextLessons)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs/latest", cfg.JobHandler.GetLatestForEntity)
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
			protected.POST("/jobs/:id/resume", cfg.JobHandler.ResumeJob)
			protected.POST("/jobs/:id/restart", cfg.JobHandler.RestartJob)
		}
	}

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghprograms/programs-backend/internal/clients/gcp"
	"github.com/ghprograms/programs-backend/internal/clients/openai"
	"github.com/ghprograms/programs-backend/internal/clients/redis"
	"github.com/ghprograms/programs-backend/internal/db"
	"github.com/ghprograms/programs-backend/internal/graph"
	"github.com/ghprograms/programs-backend/internal/handlers"
	jobhandlers "github.com/ghprograms/programs-backend/internal/jobs/handlers"
	jobrt "github.com/ghprograms/programs-backend/internal/jobs/runtime"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/middleware"
	"github.com/ghprograms/programs-backend/internal/neo4jdb"
	"github.com/ghprograms/programs-backend/internal/observability"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/server"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/sse"
	"github.com/ghprograms/programs-backend/internal/temporalx"
	"github.com/ghprograms/programs-backend/internal/temporalx/temporalworker"
	"github.com/ghprograms/programs-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: utils.GetEnv("OTEL_SERVICE_NAME", "programs-backend", nil),
		Environment: utils.GetEnv("APP_ENV", "development", nil),
		Version:     utils.GetEnv("APP_VERSION", "", nil),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn("OTel shutdown failed", "error", err)
		}
	}()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	organizationRepo := repos.NewOrganizationRepo(thePG, log)
	membershipRepo := repos.NewOrgMembershipRepo(thePG, log)
	programRepo := repos.NewProgramRepo(thePG, log)
	phaseRepo := repos.NewPhaseRepo(thePG, log)
	lessonRepo := repos.NewLessonRepo(thePG, log)
	tacticRepo := repos.NewTacticRepo(thePG, log)
	assessmentRepo := repos.NewAssessmentRepo(thePG, log)
	assessmentQuestionRepo := repos.NewAssessmentQuestionRepo(thePG, log)
	assessmentAttemptRepo := repos.NewAssessmentAttemptRepo(thePG, log)
	lessonResourceRepo := repos.NewLessonResourceRepo(thePG, log)
	transcriptSegmentRepo := repos.NewTranscriptSegmentRepo(thePG, log)
	enrollmentRepo := repos.NewEnrollmentRepo(thePG, log)
	lessonProgressRepo := repos.NewLessonProgressRepo(thePG, log)
	tacticProgressRepo := repos.NewTacticProgressRepo(thePG, log)
	userEventRepo := repos.NewUserEventRepo(thePG, log)
	chatThreadRepo := repos.NewChatThreadRepo(thePG, log)
	chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
	certificateRepo := repos.NewCertificateRepo(thePG, log)
	wellnessEntryRepo := repos.NewWellnessEntryRepo(thePG, log)
	propertyRepo := repos.NewPropertyRepo(thePG, log)
	relationshipCheckinRepo := repos.NewRelationshipCheckinRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: sseHub}
	if os.Getenv("REDIS_ADDR") != "" {
		sseBus, err := redis.NewSSEBus(log)
		if err != nil {
			log.Error("Could not init Redis SSE bus", "error", err)
			os.Exit(1)
		}
		sseBus.StartForwarder(ctx, sseHub.Broadcast)
		emitter = &services.RedisEmitter{Bus: sseBus}
	}

	jobNotifier := services.NewJobNotifier(emitter)
	progressNotifier := services.NewProgressNotifier(emitter)
	enrollmentNotifier := services.NewEnrollmentNotifier(emitter)
	chatNotifier := services.NewChatNotifier(emitter)
	certificateNotifier := services.NewCertificateNotifier(emitter)
	userNotifier := services.NewUserNotifier(emitter)

	// Clients
	log.Info("Setting up external clients from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService", "error", err)
	}
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	documentProvider, err := gcp.NewDocumentProvider(log)
	if err != nil {
		log.Warn("Could not init Document AI provider", "error", err)
	}
	visionProvider, err := gcp.NewVisionProvider(log)
	if err != nil {
		log.Warn("Could not init Vision provider", "error", err)
	}
	speechProvider, err := gcp.NewSpeechProvider(log)
	if err != nil {
		log.Warn("Could not init Speech provider", "error", err)
	}
	videoProvider, err := gcp.NewVideoProvider(log)
	if err != nil {
		log.Warn("Could not init Video Intelligence provider", "error", err)
	}

	// Learning graph (optional; recommendations fall back to SQL ordering)
	var graphProjector services.LearningGraphProjector
	var lessonRecommender services.LessonRecommender
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Could not init Neo4j client", "error", err)
	} else if neo4jClient != nil {
		learningGraph := graph.NewLearningGraph(neo4jClient, log)
		graphProjector = learningGraph
		lessonRecommender = learningGraph
		defer neo4jClient.Close(context.Background())
	}

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Could not init Temporal client", "error", err)
		os.Exit(1)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}
	temporalCfg := temporalx.LoadConfig()

	// Services
	log.Info("Setting up Services from main...")
	jobService := services.NewJobService(thePG, log, jobRunRepo, jobNotifier, temporalClient, temporalCfg.TaskQueue)
	avatarService, err := services.NewAvatarService(thePG, log, userRepo, bucketService)
	if err != nil {
		log.Error("Could not init AvatarService", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, userRepo, avatarService, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo, membershipRepo, organizationRepo, avatarService, userNotifier)
	userEventService := services.NewUserEventService(thePG, log, userEventRepo)
	dripService := services.NewDripService(log)
	programService := services.NewProgramService(
		thePG,
		log,
		programRepo,
		phaseRepo,
		lessonRepo,
		tacticRepo,
		lessonResourceRepo,
		assessmentRepo,
		membershipRepo,
		enrollmentRepo,
		lessonProgressRepo,
		tacticProgressRepo,
		dripService,
		graphProjector,
	)
	phaseService := services.NewPhaseService(thePG, log, programRepo, phaseRepo, membershipRepo)
	lessonService := services.NewLessonService(thePG, log, programRepo, phaseRepo, lessonRepo, tacticRepo, membershipRepo)
	assessmentService := services.NewAssessmentService(thePG, log, programRepo, lessonRepo, assessmentRepo, assessmentQuestionRepo, membershipRepo)
	enrollmentService := services.NewEnrollmentService(thePG, log, enrollmentRepo, programRepo, membershipRepo, userEventRepo, enrollmentNotifier)
	progressService := services.NewProgressService(
		thePG,
		log,
		programRepo,
		phaseRepo,
		lessonRepo,
		tacticRepo,
		lessonResourceRepo,
		assessmentRepo,
		assessmentQuestionRepo,
		assessmentAttemptRepo,
		enrollmentRepo,
		lessonProgressRepo,
		tacticProgressRepo,
		userEventRepo,
		dripService,
		jobService,
		progressNotifier,
		graphProjector,
	)
	chatService := services.NewChatService(thePG, log, chatThreadRepo, chatMessageRepo, enrollmentRepo, jobService, chatNotifier)
	wellnessService := services.NewWellnessService(thePG, log, wellnessEntryRepo)
	propertyService := services.NewPropertyService(thePG, log, propertyRepo)
	relationshipService := services.NewRelationshipService(thePG, log, relationshipCheckinRepo)
	resourceService := services.NewResourceService(thePG, log, programRepo, lessonRepo, lessonResourceRepo, transcriptSegmentRepo, enrollmentRepo, membershipRepo, bucketService, jobService)
	certificateService, err := services.NewCertificateService(thePG, log, certificateRepo, enrollmentRepo, programRepo, userRepo, userEventRepo, bucketService, certificateNotifier)
	if err != nil {
		log.Error("Could not init CertificateService", "error", err)
		os.Exit(1)
	}
	recommendationService := services.NewRecommendationService(thePG, log, programRepo, phaseRepo, lessonRepo, enrollmentRepo, lessonProgressRepo, dripService, lessonRecommender)
	mediaIngestService := services.NewMediaIngestService(thePG, log, lessonResourceRepo, transcriptSegmentRepo, bucketService, documentProvider, visionProvider, speechProvider, videoProvider)

	// Job handlers + Temporal worker
	registry := jobrt.NewRegistry()
	mustRegister := func(h jobrt.Handler) {
		if err := registry.Register(h); err != nil {
			log.Error("Could not register job handler", "error", err)
			os.Exit(1)
		}
	}
	mustRegister(jobhandlers.NewChatRespondHandler(
		log,
		chatThreadRepo,
		chatMessageRepo,
		programRepo,
		phaseRepo,
		lessonRepo,
		lessonProgressRepo,
		enrollmentRepo,
		lessonResourceRepo,
		transcriptSegmentRepo,
		openaiClient,
		chatNotifier,
	))
	mustRegister(jobhandlers.NewResourceIngestHandler(log, mediaIngestService))
	mustRegister(jobhandlers.NewCertificateRenderHandler(log, certificateService))
	mustRegister(jobhandlers.NewDripReleaseScanHandler(log, programRepo, phaseRepo, lessonRepo, lessonProgressRepo, enrollmentRepo, dripService, progressNotifier))

	if temporalClient != nil {
		runner, err := temporalworker.NewRunner(log, temporalClient, thePG, jobRunRepo, registry, jobNotifier)
		if err != nil {
			log.Error("Could not init Temporal worker", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := runner.Start(ctx); err != nil {
				log.Error("Temporal worker stopped", "error", err)
			}
		}()
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, userEventService)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)
	programHandler := handlers.NewProgramHandler(programService, phaseService)
	phaseHandler := handlers.NewPhaseHandler(phaseService, lessonService)
	lessonHandler := handlers.NewLessonHandler(lessonService)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentService)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService)
	progressHandler := handlers.NewProgressHandler(progressService)
	chatHandler := handlers.NewChatHandler(chatService)
	wellnessHandler := handlers.NewWellnessHandler(wellnessService)
	propertyHandler := handlers.NewPropertyHandler(propertyService)
	relationshipHandler := handlers.NewRelationshipHandler(relationshipService)
	resourceHandler := handlers.NewResourceHandler(resourceService)
	certificateHandler := handlers.NewCertificateHandler(certificateService)
	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)
	jobHandler := handlers.NewJobHandler(jobService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		Log:                   log,
		AuthMiddleware:        authMiddleware,
		AuthHandler:           authHandler,
		UserHandler:           userHandler,
		RealtimeHandler:       realtimeHandler,
		ProgramHandler:        programHandler,
		PhaseHandler:          phaseHandler,
		LessonHandler:         lessonHandler,
		AssessmentHandler:     assessmentHandler,
		EnrollmentHandler:     enrollmentHandler,
		ProgressHandler:       progressHandler,
		ChatHandler:           chatHandler,
		WellnessHandler:       wellnessHandler,
		PropertyHandler:       propertyHandler,
		RelationshipHandler:   relationshipHandler,
		ResourceHandler:       resourceHandler,
		CertificateHandler:    certificateHandler,
		RecommendationHandler: recommendationHandler,
		JobHandler:            jobHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
}

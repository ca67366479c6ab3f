package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/stuorg/portal/docs"
	v1 "github.com/stuorg/portal/internal/api/handler/v1"
	"github.com/stuorg/portal/internal/api/middleware"
	"github.com/stuorg/portal/internal/audit"
	"github.com/stuorg/portal/internal/config"
	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/repository"
	"github.com/stuorg/portal/internal/repository/dao"
	"github.com/stuorg/portal/internal/service"
	"github.com/stuorg/portal/internal/ws"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
	Hub    *ws.Hub
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	hub := ws.NewHub()
	go hub.Run()

	s := &Server{
		Config: conf,
		Router: engine,
		Hub:    hub,
	}

	s.MountMiddlewares()

	auditLog := audit.NewLog()
	electionSvc := s.initElectionService(db, auditLog)
	userSvc := s.initUserService(db)

	authHandler := s.initAuthHandler(db)
	userHandler := v1.NewUserHandler(userSvc)
	electionHandler := v1.NewElectionHandler(electionSvc, userSvc)
	kioskHandler := s.initKioskHandler(db, electionSvc, auditLog)
	provisionHandler := s.initProvisionHandler(db, userSvc, auditLog)
	liveHandler := v1.NewLiveHandler(electionSvc, hub)

	s.MountHandlers(authHandler, userHandler, electionHandler, kioskHandler, provisionHandler, liveHandler)

	return s
}

func (s *Server) initElectionService(db *gorm.DB, auditLog *audit.Log) *service.ElectionService {
	electionDAO := dao.NewElectionDAO(db)
	repo := repository.NewElectionRepository(electionDAO)
	svc := service.NewElectionService(repo, auditLog, s.Hub)

	return svc
}

func (s *Server) initUserService(db *gorm.DB) *service.UserService {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewUserService(repo)

	return svc
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initKioskHandler(db *gorm.DB, electionSvc *service.ElectionService, auditLog *audit.Log) *v1.KioskHandler {
	tokenDAO := dao.NewKioskTokenDAO(db)
	repo := repository.NewKioskTokenRepository(tokenDAO)
	svc := service.NewKioskService(repo, electionSvc, auditLog)
	handler := v1.NewKioskHandler(svc)

	return handler
}

func (s *Server) initProvisionHandler(db *gorm.DB, userSvc *service.UserService, auditLog *audit.Log) *v1.ProvisionHandler {
	requestDAO := dao.NewElectionRequestDAO(db)
	eventRepo := repository.NewElectionRepository(dao.NewElectionDAO(db))
	repo := repository.NewElectionRequestRepository(requestDAO, eventRepo)
	svc := service.NewProvisionService(repo, auditLog)
	handler := v1.NewProvisionHandler(svc, userSvc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(
	authHandler *v1.AuthHandler,
	userHandler *v1.UserHandler,
	electionHandler *v1.ElectionHandler,
	kioskHandler *v1.KioskHandler,
	provisionHandler *v1.ProvisionHandler,
	liveHandler *v1.LiveHandler,
) {
	const basePath = "/api/v1"

	verifyJWT := middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT()

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	// Kiosk terminals authenticate with single-use tokens, not JWTs.
	kiosk := s.Router.Group(basePath)
	{
		kiosk.GET("/kiosk/tokens/:tokenID", kioskHandler.HandleRedeemToken)
		kiosk.POST("/kiosk/votes", kioskHandler.HandleKioskVote)
	}

	users := s.Router.Group(basePath, verifyJWT)
	{
		users.GET("/users/:userID", userHandler.HandleGetUser)
	}

	elections := s.Router.Group(basePath, verifyJWT)
	{
		elections.GET("/elections", electionHandler.HandleListOpenEvents)
		elections.GET("/elections/:eventID", electionHandler.HandleGetEvent)
		elections.GET("/elections/:eventID/eligibility", electionHandler.HandleGetEligibility)
		elections.GET("/elections/:eventID/live", liveHandler.HandleSubscribe)
		elections.POST("/elections/:eventID/votes", electionHandler.HandleCastVote)
	}

	operators := s.Router.Group(basePath, verifyJWT, middleware.RequireRole(domain.RoleOperator, domain.RoleAdmin))
	{
		operators.POST("/elections/:eventID/candidates", electionHandler.HandleAddCandidate)
		operators.POST("/elections/:eventID/roll", electionHandler.HandleAmendRoll)
		operators.PUT("/elections/:eventID/status", electionHandler.HandleSetStatus)
		operators.PATCH("/elections/:eventID/settings", electionHandler.HandleUpdateSettings)
		operators.POST("/kiosk/tokens", kioskHandler.HandleIssueToken)
	}

	requests := s.Router.Group(basePath, verifyJWT)
	{
		requests.POST("/requests", provisionHandler.HandleSubmitRequest)

		admins := requests.Group("", middleware.RequireRole(domain.RoleAdmin))
		{
			admins.GET("/requests", provisionHandler.HandleListRequests)
			admins.POST("/requests/:requestID/approve", provisionHandler.HandleApproveRequest)
			admins.POST("/requests/:requestID/reject", provisionHandler.HandleRejectRequest)
		}
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Student Organization Portal API"
	docs.SwaggerInfo.Description = "Election engine for student organization events."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}

package handler

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"travel-diary-backend/pkg/access"
	"travel-diary-backend/pkg/config"
	"travel-diary-backend/pkg/database"
	"travel-diary-backend/pkg/email"
	"travel-diary-backend/pkg/handlers"
	"travel-diary-backend/pkg/logger"
	customMiddleware "travel-diary-backend/pkg/middleware"
	"travel-diary-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	log     *zap.Logger
	logOnce sync.Once
)

// Handler 是Vercel函数的入口点。
// 单体路由模式：所有API端点集中在一个Chi路由器中管理。
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()

	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	logOnce.Do(func() {
		log = logger.Must(cfg.Debug)
	})

	// 数据库连接由进程级连接池管理，warm invocation 直接复用
	db := database.GetDatabase(database.DatabaseConfig{
		UseLocalDB:  cfg.UseLocalDB,
		PostgresDSN: cfg.PostgresDSN,
		Debug:       cfg.Debug,
	}, log)

	router := chi.NewRouter()
	setupMiddleware(router, cfg, log)
	setupRoutes(router, cfg, db, log)

	router.ServeHTTP(w, r)
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, log *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.RequestLogger(log))
	router.Use(customMiddleware.Recovery(cfg, log))

	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制，留5秒缓冲）
	router.Use(middleware.Timeout(25 * time.Second))

	router.Use(middleware.Compress(5))
	router.Use(customMiddleware.MaxBodySize(1 << 20)) // 1MB

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface, log *zap.Logger) {
	// 邮件发送器：未接入真实服务时退化为日志输出
	var sender email.Sender = email.NewLogSender(log)

	collabManager := access.NewCollabManager(db, sender, log, cfg.AppURL)
	shareManager := access.NewShareManager(db, sender, log, cfg.AppURL, cfg.ShareLinkExpiryDays)
	gateway := access.NewGateway(db, shareManager)

	authHandler := handlers.NewAuthHandler(cfg, db, log)
	tripHandler := handlers.NewTripHandler(db, gateway, log)
	collabHandler := handlers.NewCollabHandler(db, collabManager, log)
	shareHandler := handlers.NewShareHandler(shareManager, log)

	// 健康检查端点
	router.Get("/", authHandler.HealthCheck)
	router.Get("/health", authHandler.HealthCheck)

	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.Route("/auth", func(r chi.Router) {
			r.Use(customMiddleware.ContentTypeJSON)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.RefreshToken)
			r.Post("/logout", authHandler.Logout)
		})

		// 邀请响应：invite token 本身就是凭证，无需登录
		r.With(customMiddleware.ContentTypeJSON).
			Post("/invitations/respond", collabHandler.Respond)

		// 分享链接访问：share token 即凭证
		r.Get("/shared/{token}", shareHandler.ResolveShared)

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg, log))
			r.Use(customMiddleware.ContentTypeJSON)

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", authHandler.GetProfile)
				r.Put("/profile", authHandler.UpdateProfile)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", collabHandler.MyInvitations)
			})

			r.Route("/trips", func(r chi.Router) {
				r.Get("/", tripHandler.ListTrips)
				r.Post("/", tripHandler.CreateTrip)

				r.Route("/{tripID}", func(r chi.Router) {
					r.Get("/", tripHandler.GetTrip)
					r.Put("/", tripHandler.UpdateTrip)
					r.Delete("/", tripHandler.DeleteTrip)

					r.Put("/itinerary", tripHandler.UpdateItinerary)
					r.Post("/wishlist", tripHandler.AddToWishlist)

					r.Route("/collaborators", func(r chi.Router) {
						r.Get("/", collabHandler.List)
						r.Post("/", collabHandler.Invite)
						r.Put("/{collaboratorID}", collabHandler.UpdateRole)
						r.Delete("/{collaboratorID}", collabHandler.Remove)
					})

					r.Route("/share", func(r chi.Router) {
						r.Get("/", shareHandler.List)
						r.Post("/", shareHandler.Create)
						r.Delete("/{token}", shareHandler.Revoke)
					})
				})
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}

package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	appcache "github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/queue/redisclient"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware([]string{"http://localhost:3000"}))
	r.Use(middlewares.MaxBodyBytes(1 << 20)) // 1 MiB
	r.Use(middlewares.RequireJSON())

	prom := observability.NewProm()
	r.Use(prom.Middleware())

	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("taskhub-api"))
	}

	// token verification + the access gate run on every request; the gate
	// is the only thing that says allow or deny

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	r.Use(authMW.ExtractClaims())
	r.Use(middlewares.AccessGate())

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", prom.Handler())

	// optional redis-backed approval cache
	var approvals *appcache.ApprovalCache

	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		approvals = appcache.NewApprovalCache(rdb.Raw(), 5*time.Second)
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	todosRepo := postgres.NewTodosRepo(pool, prom)
	refreshRepo := postgres.NewRefreshTokensRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, prom)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshRepo, jobsRepo, approvals, cfg)
	todosHandler := handlers.NewTodosHandler(todosRepo)
	adminHandler := handlers.NewAdminHandler(usersRepo, todosRepo, jobsRepo, approvals, appcache.New(5*time.Second))

	// credential endpoints get a brute-force limiter
	limiter := middlewares.NewRateLimiter(20, time.Minute)
	limited := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	r.POST("/register", limited, authHandler.Register)
	r.GET("/check-approval", authHandler.CheckApproval)

	authGroup := r.Group("/auth")
	authGroup.POST("/login", limited, authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// user area (gate requires an approved claim)
	todos := r.Group("/todos")
	todos.GET("", todosHandler.ListTodos)
	todos.POST("/create", todosHandler.CreateTodo)
	todos.PUT("/:id", todosHandler.UpdateStatus)
	todos.PATCH("/:id", todosHandler.EditTodo)
	todos.DELETE("/:id", todosHandler.DeleteTodo)

	// admin area (gate requires an approved admin claim), read-only except
	// for the approval decision
	admin := r.Group("/admin")
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/todos", adminHandler.ListTodos)
	admin.PATCH("/user-status", adminHandler.UpdateUserStatus)

	return r
}

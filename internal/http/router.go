package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mgathogo/lendhub/internal/auth"
	"github.com/mgathogo/lendhub/internal/cache"
	"github.com/mgathogo/lendhub/internal/config"
	"github.com/mgathogo/lendhub/internal/http/handlers"
	"github.com/mgathogo/lendhub/internal/http/middlewares"
	"github.com/mgathogo/lendhub/internal/lending"
	"github.com/mgathogo/lendhub/internal/observability"
	"github.com/mgathogo/lendhub/internal/policy"
	"github.com/mgathogo/lendhub/internal/repo/postgres"
	"github.com/mgathogo/lendhub/internal/uploads"
)

type Deps struct {
	Cfg      config.Config
	Pool     *pgxpool.Pool
	Redis    *cache.Client
	Prom     *observability.Prom
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("lendhub-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(8 << 20)) // covers image uploads

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health

	pingDB := func() error {
		if deps.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return deps.Pool.Ping(ctx)
	}

	pingRedis := func() error {
		if deps.Redis == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return deps.Redis.Ping(ctx)
	}

	health := handlers.NewHealthHandler(pingDB, pingRedis)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// wire up the stores, the policy and the workflow engine

	usersRepo := postgres.NewUsersRepo(deps.Pool)
	booksRepo := postgres.NewBooksRepo(deps.Pool, deps.Prom)
	requestsRepo := postgres.NewRequestsRepo(deps.Pool, deps.Prom)
	refreshRepo := postgres.NewRefreshTokensRepo(deps.Pool)

	pol := policy.New(deps.Cfg.AdminCode)
	engine := lending.NewEngine(deps.Pool, deps.Prom)
	jwtManager := auth.NewManager(deps.Cfg.JWTSecret, deps.Cfg.AccessTTL, deps.Cfg.RefreshTTL)

	var catalogCache handlers.ListingCache

	if deps.Redis != nil {
		catalogCache = cache.NewCatalog(deps.Redis, deps.Cfg.CatalogCacheTTL, deps.Prom)
	}

	uploadClient := uploads.NewClient(deps.Cfg.ImageHostURL, deps.Cfg.ImageHostKey)

	// handlers

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager, refreshRepo, pol, deps.Cfg)
	booksHandler := handlers.NewBooksHandler(booksRepo, engine, catalogCache)
	requestsHandler := handlers.NewRequestsHandler(engine, requestsRepo, usersRepo, catalogCache, pol)
	uploadsHandler := handlers.NewUploadsHandler(uploadClient)

	authMw := middlewares.NewAuthMiddleware(jwtManager)

	// credential endpoints get a rate limit; the code-check endpoint is
	// intentionally left out
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)

	authGroup := r.Group("/auth")
	{
		limited := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)
		jsonOnly := middlewares.RequireJSON()

		authGroup.POST("/signup", jsonOnly, limited, authHandler.SignUp)
		authGroup.POST("/login", jsonOnly, limited, authHandler.Login)
		// refresh and logout carry the token in a cookie, no body
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.POST("/logout-all", authMw.RequireAuth(), authHandler.LogoutAll)
		authGroup.POST("/verify-admin-code", jsonOnly, authHandler.VerifyAdminCode)
	}

	// any authenticated member

	authed := r.Group("/", authMw.RequireAuth())
	{
		authed.GET("/books", booksHandler.ListBooks)
		authed.GET("/books/:id", booksHandler.GetBookByID)
		authed.POST("/books/:id/requests", requestsHandler.CreateRequest)
		authed.GET("/requests/mine", requestsHandler.MyRequests)
		// admin-or-owner, enforced inside the handler via the policy
		authed.GET("/requests/:id", requestsHandler.GetRequestByID)
	}

	// privileged routes, each guarded by the matching policy decision

	manage := authMw.Require(pol.CanManageCatalog)
	decide := authMw.Require(pol.CanDecideRequest)
	upload := authMw.Require(pol.CanUploadImages)

	privileged := r.Group("/", authMw.RequireAuth())
	{
		privileged.POST("/books", manage, middlewares.RequireJSON(), booksHandler.CreateBook)
		privileged.PUT("/books/:id", manage, middlewares.RequireJSON(), booksHandler.UpdateBook)
		privileged.DELETE("/books/:id", manage, booksHandler.DeleteBook)
		privileged.POST("/books/:id/availability", manage, booksHandler.ToggleAvailability)

		privileged.GET("/books/:id/requests/open", decide, requestsHandler.OpenRequestForBook)

		privileged.GET("/requests", decide, requestsHandler.ListRequests)
		privileged.POST("/requests/:id/approve", decide, requestsHandler.Approve)
		privileged.POST("/requests/:id/reject", decide, requestsHandler.Reject)
		privileged.POST("/requests/:id/return", decide, requestsHandler.MarkReturned)

		privileged.POST("/uploads", upload, uploadsHandler.Upload)
	}

	return r
}

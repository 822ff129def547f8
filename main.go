package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"

	"pyq-server/config"
	"pyq-server/db"
	"pyq-server/event"
	"pyq-server/exam"
	"pyq-server/handlers"
	"pyq-server/ingestion"
	"pyq-server/metrics"
	"pyq-server/middleware"
	"pyq-server/store"
	"pyq-server/utils"
)

// authoringRoles may create, edit, delete and import papers.
var authoringRoles = []string{"admin", "editor"}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	// Paper store, optionally behind the Redis list cache
	paperStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Unable to open %s store: %v", cfg.Store.Driver, err)
	}
	if cfg.Redis.Addr != "" {
		rdb, err := db.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("WARN: %v; list cache will fall through until Redis is reachable", err)
		}
		defer rdb.Close()
		paperStore = store.NewCachedStore(paperStore, rdb, cfg.CacheTTL)
	}
	defer func() {
		if err := paperStore.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()

	// Domain events
	var publisher event.Publisher = event.NoopPublisher{}
	if cfg.RabbitMQ.URI != "" {
		amqpPub, err := event.NewAMQPPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("Failed to initialize RabbitMQ publisher: %v", err)
		} else {
			publisher = amqpPub
		}
	} else {
		log.Println("RabbitMQ not configured, paper events will not be published")
	}
	defer publisher.Close()

	svc := exam.NewService(paperStore, publisher)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	// Admin UI templates
	renderer := multitemplate.NewRenderer()
	renderer.AddFromFiles("admin_dashboard", "templates/layout.html", "templates/admin_dashboard.html")
	router.HTMLRender = renderer

	authMiddleware := middleware.AuthMiddleware(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	authoring := middleware.RoleCheckMiddleware(authoringRoles)

	router.GET("/healthz", handlers.Healthz(svc))
	router.GET("/metrics", metrics.Handler())

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/meta/exams", handlers.ListExamTypes())
		apiV1.GET("/papers", handlers.ListPapers(svc))
		apiV1.GET("/papers/:id", handlers.GetPaper(svc))
		apiV1.POST("/papers/:id/submit", handlers.SubmitPaper(svc))
	}

	// Authoring routes
	authorV1 := router.Group("/api/v1")
	authorV1.Use(authMiddleware, authoring)
	{
		authorV1.GET("/papers/admin", handlers.AdminListPapers(svc))
		authorV1.GET("/papers/admin/:id", handlers.AdminGetPaper(svc))
		authorV1.POST("/papers", handlers.CreatePaper(svc))
		authorV1.POST("/papers/import", handlers.ImportPapers(svc))
		authorV1.PUT("/papers/:id", handlers.UpdatePaper(svc))
		authorV1.DELETE("/papers/:id", handlers.DeletePaper(svc))
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, authoring)
	{
		admin.GET("/dashboard", handlers.AdminDashboard(svc))
	}

	// Background import of YAML papers
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.Import.Dir != "" {
		go runImports(bgCtx, svc, cfg.Import.Dir, cfg.ImportInterval)
	}

	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	// Goroutine to gracefully shut down the server
	done := make(chan struct{})
	go func() {
		defer close(done)
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		stopBackground()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("PYQ Server starting on %s (store: %s)", cfg.ServerPort, cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server startup error: %v", err)
	}
	<-done
	log.Println("Server exited gracefully.")
}

// openStore connects the configured backend and prepares its schema.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := db.InitDB(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.CreateSchema(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("error creating database schema: %w", err)
		}
		return store.NewPostgresStore(pool), nil
	case config.DriverMongo:
		client, database, err := db.InitMongo(cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		s := store.NewMongoStore(client, database)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("error creating mongo indexes: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		conn, err := db.InitSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(conn), nil
	default:
		log.Println("Using in-memory paper store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || utils.ContainsString(origins, "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// runImports loads the import directory at startup and then on every tick.
func runImports(ctx context.Context, svc *exam.Service, dir string, interval time.Duration) {
	importOnce := func() {
		log.Printf("Running scheduled paper import from %s...", dir)
		if _, err := ingestion.ImportDir(ctx, svc, dir); err != nil {
			log.Printf("Error during scheduled import: %v", err)
		}
	}
	importOnce()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			importOnce()
		}
	}
}

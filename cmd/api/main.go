// main.go
package main

import (
	"context"
	"log"

	"github.com/drewmudry/captioncast/events"
	"github.com/drewmudry/captioncast/exports"
	"github.com/drewmudry/captioncast/internal/config"
	"github.com/drewmudry/captioncast/internal/platform"
	"github.com/drewmudry/captioncast/items"
	"github.com/drewmudry/captioncast/playback"
	"github.com/drewmudry/captioncast/processing"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type Server struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Services *platform.Services
	Router   *gin.Engine

	closeEvents func()
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := platform.NewDBConnection(cfg)
	if err != nil {
		return nil, err
	}
	rdb := platform.NewRedisClient(cfg)
	svc, err := platform.NewServices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	router := gin.Default()

	// CORS for the browser client
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.FrontendURL)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Services: svc,
		Router:   router,
	}
	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		sqlDB, err := s.DB.DB()
		if err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		if err := s.Redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(500, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"status":   "healthy",
			"database": "connected",
			"redis":    "connected",
		})
	})

	s.Router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Captioncast API v1"})
	})

	api := s.Router.Group("/api")

	if gen, err := processing.NewGenerator(s.Config.OpenAIAPIKey); err != nil {
		log.Printf("Text and speech generation disabled: %v", err)
	} else {
		processing.NewHandler(gen).Register(api)
	}

	itemStore := items.NewStore(s.DB, s.Services.Blobs)
	items.NewHandler(itemStore, s.Services.Aligner).Register(api)
	playback.NewHandler(itemStore, s.Services.Aligner).Register(api)

	// The API only produces jobs; cmd/worker consumes them.
	store := exports.NewGormStore(s.DB)
	queue := exports.NewQueue(store, nil)
	publisher, closeEvents := platform.NewPublisher(s.Config, s.Redis)
	s.closeEvents = closeEvents
	queue.Events = publisher
	if s.Config.Scheduler == config.SchedulerRedis {
		queue.Waker = exports.NewRedisScheduler(s.Redis, s.Config.PollDelay)
	}

	exportHandler := exports.NewHandler(queue, exports.NewArtifactService(store, s.Services.Blobs), itemStore)
	exportHandler.Feed = events.NewRedis(s.Redis)
	exportHandler.Register(api)
}

func (s *Server) Run() error {
	defer s.closeEvents()
	log.Printf("Server starting on port %s", s.Config.Port)
	return s.Router.Run(":" + s.Config.Port)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	server, err := NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to create server:", err)
	}

	if err := server.Run(); err != nil {
		log.Fatal("Failed to run server:", err)
	}
}

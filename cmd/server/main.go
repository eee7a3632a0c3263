package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/karaoke-room-system/internal/collection"
	"github.com/karaoke-room-system/internal/command"
	"github.com/karaoke-room-system/internal/config"
	"github.com/karaoke-room-system/internal/room"
	"github.com/karaoke-room-system/internal/server"
	"github.com/karaoke-room-system/internal/session"
	"github.com/karaoke-room-system/internal/ws"
	"github.com/karaoke-room-system/internal/youtube"
	"github.com/karaoke-room-system/pkg/database"
	"github.com/karaoke-room-system/pkg/events"
	"github.com/karaoke-room-system/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Collection persistence: MySQL when configured, otherwise the data dir
	var persister collection.Persister
	if cfg.UseMySQL() {
		db, err := database.NewMySQLDB(cfg.MySQL(), logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		persister = db
	} else {
		persister = collection.NewFilePersister(cfg.DataDir, logger)
	}

	store, err := collection.NewStore(persister, logger)
	if err != nil {
		logger.Fatal("failed to load collections", zap.Error(err))
	}

	// Search cache: Redis when configured, otherwise in-process
	var searchCache youtube.Cache
	if cfg.RedisAddr != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		searchCache = redis.NewSearchCache(redisClient)
	} else {
		memCache := youtube.NewMemoryCache(youtube.DefaultMemoryCacheSize)
		defer memCache.Close()
		searchCache = memCache
	}

	// Room event stream
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaClient(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	defer publisher.Close()

	// Initialize services
	youtubeClient := youtube.NewClient(cfg.YouTubeAPIKey, cfg.YouTubeAPIBase)
	resolver := youtube.NewResolver(youtubeClient, cfg.MetadataTimeout, logger)
	searcher := youtube.NewSearcher(youtubeClient, searchCache, cfg.SearchCacheTTL, logger)

	rooms := room.NewManager(cfg.HostIdentity, store.All())
	registry := session.NewRegistry(logger)
	dispatcher := command.NewDispatcher(rooms, store, resolver, logger)
	srv := server.New(cfg.Port, cfg.PortSearchSpan, logger)

	// Initialize handlers
	wsHandler := ws.NewHandler(registry, rooms, dispatcher, publisher, logger)
	dispatcher.AddBroadcaster(wsHandler)
	dispatcher.AddBroadcaster(publisher)

	roomHandler := room.NewHandler(rooms, store, srv, logger)
	commandHandler := command.NewHandler(dispatcher)
	collectionHandler := collection.NewHandler(store, dispatcher)
	searchHandler := youtube.NewHandler(searcher)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"room":   rooms.Current().RoomID(),
		})
	})

	v1 := router.Group("/api/v1")
	{
		roomHandler.RegisterRoutes(v1)
		commandHandler.RegisterRoutes(v1)
		collectionHandler.RegisterRoutes(v1)
		searchHandler.RegisterRoutes(v1)
	}
	router.GET("/ws", wsHandler.HandleWebSocket)

	// Serve the bundled web client with SPA fallback
	router.NoRoute(func(c *gin.Context) {
		cleanPath := filepath.Clean(c.Request.URL.Path)
		filePath := filepath.Join("frontend/dist", cleanPath)
		if info, err := os.Stat(filePath); err == nil && !info.IsDir() {
			c.File(filePath)
		} else {
			c.File("frontend/dist/index.html")
		}
	})

	go registry.RunJanitor(ctx, cfg.RoomCleanupInterval, cfg.RoomTTL)

	if _, err := srv.Start(ctx, router); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	<-srv.Done()
	logger.Info("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// corsConfig allows any origin by default since phones on the LAN load the
// client from the host's own address.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

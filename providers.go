package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chatsync_server/changefeed"
	"chatsync_server/config"
	"chatsync_server/controllers"
	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/logger"
	"chatsync_server/metrics"
	"chatsync_server/services"
	"chatsync_server/socket"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// App is the assembled server: the HTTP API and the socket.io endpoint on one port
type App struct {
	Server *http.Server
	Socket *socket.Server
	Logger *zap.Logger
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

// ProvideAWSConfig loads the default credential chain for the configured region
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// ProvideFeed picks the Redis change feed when an address is configured, the in-process one otherwise
func ProvideFeed(ctx context.Context, cfg *config.Config, log *zap.Logger) (changefeed.Feed, func(), error) {
	if cfg.Redis.Addr == "" {
		feed := changefeed.NewLocal()
		log.Info("📡 Using in-process change feed")
		return feed, func() { _ = feed.Close() }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	feed := changefeed.NewRedis(client, cfg.Redis.Prefix, log)
	log.Info("📡 Using Redis change feed", zap.String("addr", cfg.Redis.Addr))
	return feed, func() {
		_ = feed.Close()
		_ = client.Close()
	}, nil
}

// ProvideStore opens the configured document store. Memory and DynamoDB get live
// subscriptions through the change feed; Firestore has native listeners.
func ProvideStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, feed changefeed.Feed, log *zap.Logger) (docstore.LiveStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverDynamoDB:
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Store.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Store.DynamoEndpoint)
			}
		})
		if cfg.Store.CreateTable {
			if err := docstore.EnsureTable(ctx, client, cfg.Store.DynamoTable); err != nil {
				return nil, nil, err
			}
		}
		log.Info("✅ DynamoDB store initialized", zap.String("table", cfg.Store.DynamoTable))
		return docstore.NewLive(docstore.NewDynamo(client, cfg.Store.DynamoTable, log), feed, log), func() {}, nil
	case config.DriverFirestore:
		client, err := firestore.NewClient(ctx, cfg.Store.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		log.Info("✅ Firestore store initialized", zap.String("project", cfg.Store.FirestoreProject))
		return docstore.NewFirestore(client, log), func() { _ = client.Close() }, nil
	default:
		log.Warn("⚠️ Using in-memory store, data is lost on restart")
		return docstore.NewLive(docstore.NewMemory(), feed, log), func() {}, nil
	}
}

func ProvideIDs(cfg *config.Config) (*idgen.Generator, error) {
	return idgen.New(cfg.Chat.NodeID)
}

func ProvideMediaService(awsCfg aws.Config, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) *services.MediaService {
	client := s3.NewFromConfig(awsCfg)
	return services.NewMediaService(client, s3.NewPresignClient(client), cfg.AWS.Bucket, cfg.AWS.Region, cfg.AWS.PublicBaseURL, m, log)
}

func ProvideChatService(store docstore.LiveStore, presence *services.PresenceService, users *services.UserService, media services.Uploader, ids *idgen.Generator, m *metrics.Metrics, log *zap.Logger, cfg *config.Config) *services.ChatService {
	return services.NewChatService(store, presence, users, media, ids, m, log, cfg.Chat.DefaultGroupAvatarURL)
}

func ProvideAuthService(store docstore.LiveStore, users *services.UserService, ids *idgen.Generator, cfg *config.Config, log *zap.Logger) *services.AuthService {
	return services.NewAuthService(store, users, ids, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.MinEntropyBits, cfg.Auth.DefaultAvatarURL, log)
}

func ProvideCallController(calls *services.CallService, cfg *config.Config, log *zap.Logger) *controllers.CallController {
	return controllers.NewCallController(calls, cfg.Calls.WebhookSecret, log)
}

// ProvideSocketServer starts the socket.io event loop; the cleanup closes every connection
func ProvideSocketServer(auth *services.AuthService, chat *services.ChatService, users *services.UserService, presence *services.PresenceService, calls *services.CallService, m *metrics.Metrics, cfg *config.Config, log *zap.Logger) (*socket.Server, func()) {
	server := socket.NewSocketServer(auth, socket.Services{
		Chat:     chat,
		Users:    users,
		Presence: presence,
		Calls:    calls,
		Metrics:  m,
	}, cfg.Server.AllowedOrigins, log)
	go func() {
		if err := server.Serve(); err != nil {
			log.Error("❌ Socket server stopped", zap.Error(err))
		}
	}()
	return server, func() { _ = server.Close() }
}

// ProvideApp mounts the socket.io endpoint next to the router and adds CORS
func ProvideApp(cfg *config.Config, router *mux.Router, sock *socket.Server, log *zap.Logger) *App {
	root := http.NewServeMux()
	root.Handle("/socket.io/", sock)
	root.Handle("/", router)

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", controllers.WebhookSecretHeader},
		AllowCredentials: true,
	}).Handler(root)

	return &App{
		Server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Socket: sock,
		Logger: log,
	}
}

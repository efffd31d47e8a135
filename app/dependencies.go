package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/config"
	"github.com/maomaocong/audio-scene-api/handlers"
	"github.com/maomaocong/audio-scene-api/middleware"
	"github.com/maomaocong/audio-scene-api/repositories/dynamo"
	"github.com/maomaocong/audio-scene-api/repositories/postgres"
	"github.com/maomaocong/audio-scene-api/repositories/s3"
	"github.com/maomaocong/audio-scene-api/services/ai"
	"github.com/maomaocong/audio-scene-api/services/audio"
	"github.com/maomaocong/audio-scene-api/services/auth"
	"github.com/maomaocong/audio-scene-api/services/providers"
	"github.com/maomaocong/audio-scene-api/services/providers/openai"
	"github.com/maomaocong/audio-scene-api/services/rag"
	"github.com/maomaocong/audio-scene-api/services/scene"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB  // nil when the vector store is not configured
	Redis  *redis.Client // nil when group caching is disabled

	// Identity
	Identity  *cognito.IdentityClient
	Validator *cognito.Validator

	// Storage
	Scenes  *dynamo.SceneRepository
	Blobs   *s3.BlobStore
	Vectors *postgres.VectorStore // nil when the vector store is not configured

	// Providers
	Registry *providers.Registry

	// Middleware
	AuthMiddleware  *middleware.AuthMiddleware
	AdminMiddleware *middleware.AdminMiddleware

	// Handlers
	AuthHandler   *handlers.AuthHandler
	SceneHandler  *handlers.SceneHandler
	AudioHandler  *handlers.AudioHandler
	AIHandler     *handlers.AIHandler
	RAGHandler    *handlers.RAGHandler // nil when the vector store is not configured
	HealthHandler *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initIdentity(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize identity: %w", err)
	}
	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	deps.initProviders(cfg)
	deps.initServices(cfg)

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initIdentity wires the Cognito token validator and management client
func (d *Dependencies) initIdentity(ctx context.Context, cfg *config.Config) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Cognito.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	d.Validator = cognito.NewValidator(cognito.Config{
		Region:     cfg.Cognito.Region,
		UserPoolID: cfg.Cognito.UserPoolID,
		ClientID:   cfg.Cognito.ClientID,
	})
	d.Identity = cognito.NewIdentityClient(awsCfg, cfg.Cognito.UserPoolID, cfg.Cognito.ClientID)

	d.Logger.Info("identity provider configured",
		zap.String("region", cfg.Cognito.Region),
		zap.String("userPoolId", cfg.Cognito.UserPoolID))
	return nil
}

// initStorage wires the scene table, the audio bucket, the optional
// vector store and the optional Redis cache
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	dynamoCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Dynamo.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	d.Scenes = dynamo.NewSceneRepository(dynamo.NewClient(dynamoCfg), cfg.Dynamo.TableName, d.Logger)

	blobCfg := dynamoCfg
	if cfg.Blob.Region != cfg.Dynamo.Region {
		blobCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Blob.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
	}
	d.Blobs = s3.NewBlobStore(blobCfg, cfg.Blob.Bucket, cfg.Blob.CloudFrontDomain, d.Logger)

	if cfg.VectorDB != nil {
		db, err := postgres.NewDB(cfg.VectorDB, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect vector store: %w", err)
		}
		d.DB = db
		d.Vectors = postgres.NewVectorStore(db.DB, d.Logger)
		if err := d.Vectors.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate vector store: %w", err)
		}
		d.Logger.Info("vector store configured",
			zap.String("connection", cfg.VectorDB.LogString()))
	} else {
		d.Logger.Info("vector store not configured, retrieval endpoints disabled")
	}

	if cfg.Redis.Addr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.Logger.Info("group cache configured", zap.String("addr", cfg.Redis.Addr))
	}

	return nil
}

// initProviders fills the registry with every configured provider
func (d *Dependencies) initProviders(cfg *config.Config) {
	d.Registry = providers.NewRegistry()

	if cfg.Providers.OpenAI.APIKey != "" {
		adapter := openai.NewAdapter("openai", providerConfig(cfg.Providers.OpenAI),
			openai.WithEmbedModel(cfg.Providers.EmbeddingModel))
		d.Registry.Register(adapter)
		d.Logger.Info("registered provider", zap.String("provider", "openai"))
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		adapter := openai.NewAdapter("openrouter", providerConfig(cfg.Providers.OpenRouter))
		d.Registry.Register(adapter)
		d.Logger.Info("registered provider", zap.String("provider", "openrouter"))
	}
	if len(d.Registry.List()) == 0 {
		d.Logger.Warn("no LLM providers configured, chat endpoints will fail")
	}
}

// initServices builds the service layer and the HTTP surface on top of it
func (d *Dependencies) initServices(cfg *config.Config) {
	var groupCache *auth.RedisGroupCache
	if d.Redis != nil {
		groupCache = auth.NewRedisGroupCache(d.Redis, cfg.Redis.CacheTTL, d.Logger)
	}

	var authCache auth.GroupCache
	var adminCache middleware.GroupCache
	if groupCache != nil {
		authCache = groupCache
		adminCache = groupCache
	}

	authService := auth.NewService(d.Identity, authCache, d.Logger)
	sceneService := scene.NewService(d.Scenes, d.Blobs, d.Logger)
	audioService := audio.NewService(d.Blobs, cfg.Blob.UploadTTL, d.Logger)

	var ragService *rag.Service
	var retriever ai.Retriever
	if d.Vectors != nil {
		ragService = rag.NewService(d.Vectors, d.embedder(cfg), d.Logger)
		retriever = ragService
	}
	aiService := ai.NewService(d.Registry, retriever, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, nil, d.Logger)
	d.AdminMiddleware = middleware.NewAdminMiddleware(d.Identity, adminCache, d.Logger)

	d.AuthHandler = handlers.NewAuthHandler(authService, d.Config.IsProduction(), d.Logger)
	d.SceneHandler = handlers.NewSceneHandler(sceneService, d.Logger)
	d.AudioHandler = handlers.NewAudioHandler(audioService, d.Logger)
	d.AIHandler = handlers.NewAIHandler(aiService, d.Logger)
	if ragService != nil {
		d.RAGHandler = handlers.NewRAGHandler(ragService, d.Logger)
	}

	components := map[string]handlers.HealthChecker{
		"scenes": d.Scenes,
	}
	if d.Vectors != nil {
		components["vectors"] = d.Vectors
	}
	if d.Redis != nil {
		components["cache"] = redisChecker{client: d.Redis}
	}
	d.HealthHandler = handlers.NewHealthHandler(components, d.Logger)
}

// embedder returns the OpenAI adapter used for RAG embeddings. OpenRouter
// has no embeddings endpoint, so embeddings always go through OpenAI.
func (d *Dependencies) embedder(cfg *config.Config) providers.Embedder {
	return openai.NewAdapter("openai-embeddings", providerConfig(cfg.Providers.OpenAI),
		openai.WithEmbedModel(cfg.Providers.EmbeddingModel))
}

func providerConfig(pc config.ProviderConfig) providers.Config {
	return providers.Config{
		APIKey:            pc.APIKey,
		BaseURL:           pc.BaseURL,
		DefaultModel:      pc.Model,
		Timeout:           pc.Timeout,
		MaxRetries:        pc.MaxRetries,
		RequestsPerSecond: pc.RequestsPerSecond,
	}
}

// redisChecker adapts the Redis client to the health probe interface
type redisChecker struct {
	client *redis.Client
}

func (c redisChecker) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases held connections. Safe to call once at shutdown.
func (d *Dependencies) Close() error {
	var firstErr error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

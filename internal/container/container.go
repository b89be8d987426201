package container

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/config"
	"github.com/oksasatya/storefront-admin/internal/application"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/auth"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/changefeed"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/firestoredb"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/gcs"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/memstore"
	pginfra "github.com/oksasatya/storefront-admin/internal/infrastructure/postgres"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/search"
	"github.com/oksasatya/storefront-admin/pkg/clock"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

// Container holds the components built from configuration. Optional
// integrations (Redis, GCS, Elasticsearch, RabbitMQ) stay nil when not
// configured or unreachable.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	PGPool    *pgxpool.Pool
	Redis     *redis.Client
	GCS       *storage.Client
	Firestore *firestore.Client
	ES        *elasticsearch.Client
	Rabbit    *helpers.RabbitPublisher
	JWT       *helpers.JWTManager

	Store    repo.DocumentStore
	Users    repo.UserRepository
	Auth     repo.AuthProvider
	Products *application.ProductRepository
	Images   repo.ImageStore
	Index    repo.ProductIndex
	Indexer  *application.ProductIndexer
	Notifier *application.LoginNotifier

	closers []func()
}

// Build connects to the configured backends. On error everything opened so
// far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context) error {
	if c.Config.NeedsPostgres() {
		pool, err := pginfra.NewPool(ctx, c.Config.PostgresDSN(), c.Config.DBMaxConns, c.Config.DBMinConns, c.Config.DBMaxConnLife)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		c.PGPool = pool
		c.onClose(pool.Close)
	}

	c.buildRedis(ctx)

	if err := c.buildStore(ctx); err != nil {
		return err
	}
	if err := c.buildAuth(ctx); err != nil {
		return err
	}
	c.Products = application.NewProductRepository(c.Store, c.Config.AppID, clock.RealClock{}, c.Config.RequestTimeout, c.Logger)

	if err := c.buildMedia(ctx); err != nil {
		return err
	}
	if err := c.buildSearch(); err != nil {
		return err
	}
	c.buildNotifier()
	return nil
}

func (c *Container) onClose(fn func()) { c.closers = append(c.closers, fn) }

// Close releases every client in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// buildRedis leaves Redis nil when it is not configured or not reachable;
// rate limiting, session revocation and the cross-process change feed are
// then disabled.
func (c *Container) buildRedis(ctx context.Context) {
	if c.Config.RedisAddr == "" {
		return
	}
	rdb := helpers.NewRedisClient(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err := helpers.PingRedis(ctx, rdb, 3*time.Second); err != nil {
		c.Logger.WithError(err).WithField("addr", c.Config.RedisAddr).Warn("redis unavailable; continuing without it")
		_ = rdb.Close()
		return
	}
	c.Redis = rdb
	c.onClose(func() { _ = rdb.Close() })
}

func (c *Container) buildStore(ctx context.Context) error {
	switch c.Config.StoreBackend {
	case config.StoreBackendPostgres:
		var feed pginfra.ChangeFeed = changefeed.NewLocal()
		if c.Redis != nil {
			feed = changefeed.NewRedis(c.Redis, c.Logger)
		}
		c.Store = pginfra.NewDocumentStore(c.PGPool, feed, c.Logger)
	case config.StoreBackendFirestore:
		client, err := firestoredb.NewClient(ctx, c.Config.FirebaseProjectID, c.Config.GoogleCredentialsJSON)
		if err != nil {
			return fmt.Errorf("connect firestore: %w", err)
		}
		c.Firestore = client
		c.onClose(func() { _ = client.Close() })
		c.Store = firestoredb.NewDocumentStore(client, c.Logger)
	case config.StoreBackendMemory:
		c.Store = memstore.New()
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Config.StoreBackend)
	}
	c.Logger.WithField("backend", c.Config.StoreBackend).Info("document store ready")
	return nil
}

func (c *Container) buildAuth(ctx context.Context) error {
	switch c.Config.AuthBackend {
	case config.AuthBackendLocal:
		c.JWT = helpers.NewJWTManager(c.Config.JWTAccessSecret, c.Config.AccessTTL)
		c.Users = pginfra.NewUserRepository(c.PGPool)
		c.Auth = auth.NewLocalProvider(c.Users, c.JWT, c.Redis, c.Logger)
	case config.AuthBackendFirebase:
		p, err := auth.NewFirebaseProvider(ctx, c.Config.FirebaseAPIKey, c.Logger)
		if err != nil {
			return err
		}
		c.Auth = p
	default:
		return fmt.Errorf("unknown AUTH_BACKEND %q", c.Config.AuthBackend)
	}
	c.Logger.WithField("backend", c.Config.AuthBackend).Info("auth provider ready")
	return nil
}

func (c *Container) buildMedia(ctx context.Context) error {
	if c.Config.GCSBucket == "" {
		return nil
	}
	client, err := helpers.NewGCSClient(ctx, c.Config.GoogleCredentialsJSON)
	if err != nil {
		return fmt.Errorf("init GCS client: %w", err)
	}
	c.GCS = client
	c.onClose(func() { _ = client.Close() })
	c.Images = gcs.NewImageStore(client, c.Config.GCSBucket)
	return nil
}

func (c *Container) buildSearch() error {
	es, err := helpers.NewESClient(c.Config.ESAddrs(), c.Config.ElasticsearchUser, c.Config.ElasticsearchPass)
	if err != nil {
		return fmt.Errorf("init elasticsearch: %w", err)
	}
	if es == nil {
		return nil
	}
	c.ES = es
	c.Index = search.NewProductIndex(es, c.Config.ESProductsIndex)
	c.Indexer = application.NewProductIndexer(c.Products, c.Index, c.Logger, c.Config.RequestTimeout)
	return nil
}

// buildNotifier queues login emails only when sending is enabled and
// RabbitMQ is reachable.
func (c *Container) buildNotifier() {
	if !c.Config.MailSendEnabled || c.Config.RabbitMQURL == "" {
		return
	}
	pub, err := helpers.NewRabbitPublisher(c.Config.RabbitMQURL, c.Config.RabbitMQEmailQueue)
	if err != nil {
		c.Logger.WithError(err).Warn("rabbitmq unavailable; login notifications disabled")
		return
	}
	c.Rabbit = pub
	c.onClose(pub.Close)
	c.Notifier = application.NewLoginNotifier(pub, c.Config, c.Logger)
}

package storage

import (
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	// register the PostgreSQL driver
	_ "github.com/lib/pq"

	"github.com/sensebox/ttn-osem-integration/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	db          *sqlx.DB
	redisClient redis.UniversalClient
	keyPrefix   string

	boxCacheTTL      = time.Minute
	deduplicationTTL = 500 * time.Millisecond
	lastValueTTL     time.Duration
)

// Setup configures the storage package.
func Setup(c config.Config) error {
	log.Info("storage: setting up storage module")

	keyPrefix = c.Redis.KeyPrefix
	if c.Integration.DeviceCacheTTL != 0 {
		boxCacheTTL = c.Integration.DeviceCacheTTL
	}
	if c.Integration.DeduplicationTTL != 0 {
		deduplicationTTL = c.Integration.DeduplicationTTL
	}
	lastValueTTL = c.Integration.LastValueTTL

	if len(c.Redis.Servers) == 0 {
		log.Warning("storage: no redis servers configured, caching and de-duplication are disabled")
	} else {
		log.Info("storage: setting up Redis client")
		redisClient = newRedisClient(c)
		for {
			if err := redisClient.Ping(context.Background()).Err(); err != nil {
				log.WithError(err).Warning("storage: ping Redis error, will retry in 2s")
				time.Sleep(2 * time.Second)
			} else {
				break
			}
		}
	}

	log.Info("storage: connecting to PostgreSQL database")
	d, err := sqlx.Open("postgres", c.PostgreSQL.DSN)
	if err != nil {
		return errors.Wrap(err, "storage: PostgreSQL connection error")
	}
	d.SetMaxOpenConns(c.PostgreSQL.MaxOpenConnections)
	d.SetMaxIdleConns(c.PostgreSQL.MaxIdleConnections)
	for {
		if err := d.Ping(); err != nil {
			log.WithError(err).Warning("storage: ping PostgreSQL database error, will retry in 2s")
			time.Sleep(2 * time.Second)
		} else {
			break
		}
	}

	db = d

	if c.PostgreSQL.Automigrate {
		if err := MigrateUp(db); err != nil {
			return err
		}
	}

	return nil
}

func newRedisClient(c config.Config) redis.UniversalClient {
	var tlsConfig *tls.Config
	if c.Redis.TLSEnabled {
		tlsConfig = &tls.Config{}
	}

	switch {
	case c.Redis.Cluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:     c.Redis.Servers,
			PoolSize:  c.Redis.PoolSize,
			Password:  c.Redis.Password,
			TLSConfig: tlsConfig,
		})
	case c.Redis.MasterName != "":
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       c.Redis.MasterName,
			SentinelAddrs:    c.Redis.Servers,
			SentinelPassword: c.Redis.Password,
			DB:               c.Redis.Database,
			PoolSize:         c.Redis.PoolSize,
			Password:         c.Redis.Password,
			TLSConfig:        tlsConfig,
		})
	default:
		return redis.NewClient(&redis.Options{
			Addr:      c.Redis.Servers[0],
			DB:        c.Redis.Database,
			Password:  c.Redis.Password,
			PoolSize:  c.Redis.PoolSize,
			TLSConfig: tlsConfig,
		})
	}
}

// MigrateUp applies all pending PostgreSQL schema migrations.
func MigrateUp(db *sqlx.DB) error {
	log.Info("storage: applying PostgreSQL schema migrations")

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "new migrations source error")
	}

	drv, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "new migrate driver error")
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return errors.Wrap(err, "new migrate instance error")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "storage: applying PostgreSQL schema migrations error")
	}

	v, _, _ := m.Version()
	log.WithField("version", v).Info("storage: PostgreSQL schema migrations applied")

	return nil
}

// DB returns the PostgreSQL database object.
func DB() *sqlx.DB {
	return db
}

// SetDB sets the PostgreSQL database object.
func SetDB(d *sqlx.DB) {
	db = d
}

// RedisClient returns the Redis client.
func RedisClient() redis.UniversalClient {
	return redisClient
}

// SetRedisClient sets the Redis client.
func SetRedisClient(c redis.UniversalClient) {
	redisClient = c
}

// Transaction wraps the given function in a transaction. In case the given
// functions returns an error, the transaction will be rolled back.
func Transaction(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "storage: begin transaction error")
	}

	err = f(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(rbErr, "storage: transaction rollback error")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "storage: transaction commit error")
	}
	return nil
}

// GetRedisKey returns the Redis key given a template and parameters.
func GetRedisKey(tmpl string, params ...interface{}) string {
	return keyPrefix + fmt.Sprintf(tmpl, params...)
}

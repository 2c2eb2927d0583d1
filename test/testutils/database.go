//go:build integration

// Package testutils provides common testing utilities and infrastructure setup
package testutils

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/infrastructure/persistence/postgres"
	redisgw "github.com/ecofridge/server/internal/infrastructure/persistence/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// DatabaseConfig holds test database configuration
type DatabaseConfig struct {
	Image    string
	Database string
	Username string
	Password string
	Port     nat.Port
}

// DefaultDatabaseConfig returns the default test database configuration
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Image:    "postgres:15-alpine",
		Database: "ecofridge_test",
		Username: "test_user",
		Password: "test_password",
		Port:     "5432/tcp",
	}
}

// TestDatabase is a migrated postgres running in a container
type TestDatabase struct {
	Container testcontainers.Container
	Manager   *postgres.ConnectionManager
	DB        *gorm.DB
	Config    config.DatabaseConfig
}

// SetupTestDatabase starts postgres and applies the embedded migrations
// through the production connection manager.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	cfg := DefaultDatabaseConfig()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.Image,
			ExposedPorts: []string{string(cfg.Port)},
			Env: map[string]string{
				"POSTGRES_DB":       cfg.Database,
				"POSTGRES_USER":     cfg.Username,
				"POSTGRES_PASSWORD": cfg.Password,
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort(cfg.Port),
			),
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw,noexec,nosuid,size=256m",
			},
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, cfg.Port)
	require.NoError(t, err)

	dbCfg := config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		Database:     cfg.Database,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		LogLevel:     "error",
		AutoMigrate:  true,
	}
	manager, err := postgres.NewConnectionManager(dbCfg, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = manager.Close() })

	return &TestDatabase{Container: container, Manager: manager, DB: manager.GetDB(), Config: dbCfg}
}

// TruncateAllTables empties every pipeline table
func (td *TestDatabase) TruncateAllTables(t *testing.T) {
	err := td.DB.Exec("TRUNCATE inventory_items, profiles, recipes, confirmations").Error
	require.NoError(t, err)
}

// TestRedis is a redis server running in a container
type TestRedis struct {
	Container testcontainers.Container
	Client    goredis.UniversalClient
}

// SetupTestRedis starts redis and connects through the production client
func SetupTestRedis(t *testing.T) *TestRedis {
	ctx := context.Background()
	redisPort := nat.Port("6379/tcp")

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{string(redisPort)},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready to accept connections"),
				wait.ForListeningPort(redisPort),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	client, err := redisgw.NewClient(config.RedisConfig{
		Host:         host,
		Port:         port.Int(),
		PoolSize:     5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err, "Failed to connect to test redis")
	t.Cleanup(func() { _ = client.Close() })

	return &TestRedis{Container: container, Client: client}
}

// FlushAll drops every key
func (tr *TestRedis) FlushAll(t *testing.T) {
	require.NoError(t, tr.Client.FlushAll(context.Background()).Err())
}

//go:build integration

package integration

import (
	"context"
	"database/sql"
	"testing"

	"github.com/ecofridge/server/internal/infrastructure/persistence/gatewaytest"
	gormgw "github.com/ecofridge/server/internal/infrastructure/persistence/gorm"
	"github.com/ecofridge/server/internal/infrastructure/persistence/migrations"
	redisgw "github.com/ecofridge/server/internal/infrastructure/persistence/redis"
	"github.com/ecofridge/server/internal/ports/outbound"
	"github.com/ecofridge/server/test/testutils"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPostgresGateway(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := testutils.SetupTestDatabase(t)
	require.NoError(t, db.Manager.HealthCheck(context.Background()))

	gatewaytest.Run(t, func(t *testing.T) outbound.Gateway {
		db.TruncateAllTables(t)
		return gormgw.NewGateway(db.DB)
	})
}

func TestPostgresGateway_CheckConstraints(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := testutils.SetupTestDatabase(t)
	gw := gormgw.NewGateway(db.DB)
	ctx := context.Background()

	err := db.DB.Exec(
		"INSERT INTO inventory_items (tenant_id, name, count, carbon_footprint) VALUES (?, ?, ?, ?)",
		"t1", "tomato", 1, 9,
	).Error
	assert.Error(t, err, "carbon footprint outside 1..3 must be rejected")

	require.NoError(t, gw.AddExperience(ctx, "t1", 5))
	assert.Error(t, db.DB.Exec("UPDATE profiles SET exp = -1 WHERE tenant_id = ?", "t1").Error)

	p, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Exp)
}

func TestPostgresMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := testutils.SetupTestDatabase(t)
	conn, err := sql.Open("pgx", db.Config.DSN(db.Config.Host))
	require.NoError(t, err)

	m, err := migrations.New(conn, db.Config.Database, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	res, err := m.Up()
	require.NoError(t, err)
	assert.False(t, res.Applied(), "the connection manager already migrated")
	assert.Equal(t, uint(1), res.To)
}

func TestRedisGateway(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb := testutils.SetupTestRedis(t)

	gatewaytest.Run(t, func(t *testing.T) outbound.Gateway {
		return redisgw.NewGateway(rdb.Client, "test-"+uuid.NewString(), zaptest.NewLogger(t))
	})
}

func TestRedisGateway_ConcurrentExperience(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb := testutils.SetupTestRedis(t)
	gw := redisgw.NewGateway(rdb.Client, "exp", zaptest.NewLogger(t))
	ctx := context.Background()

	done := make(chan error, 20)
	for i := 0; i < 20; i++ {
		go func() { done <- gw.AddExperience(ctx, "t1", 3) }()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, <-done)
	}

	p, err := gw.GetProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 60, p.Exp)
}

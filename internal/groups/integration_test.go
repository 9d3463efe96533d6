//go:build integration

package groups

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"warden/internal/logger"
	"warden/internal/moderation"
	pkgerrors "warden/pkg/errors"
	"warden/pkg/models"
)

type testInfra struct {
	db          *sql.DB
	redisClient *redisclient.Client
}

func setupInfra(t *testing.T) *testInfra {
	t.Helper()

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(10*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(pingCtx), "failed to ping postgres")

	require.NoError(t, runTestMigrations(db), "failed to run migrations")

	redisContainer, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		redisContainer.Terminate(ctx)
	})

	uri, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)
	opt, err := redisclient.ParseURL(uri)
	require.NoError(t, err)

	client := redisclient.NewClient(opt)
	t.Cleanup(func() {
		client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err(), "failed to ping redis")

	return &testInfra{db: db, redisClient: client}
}

func runTestMigrations(db *sql.DB) error {
	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get work dir: %w", err)
	}
	migrationsPath := filepath.Join(workDir, "..", "..", "migrations", "postgres")

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func testGroupConfig(groupID int64) *moderation.GroupConfig {
	return &moderation.GroupConfig{
		GroupID: groupID,
		LinkFilter: &moderation.FilterRule{
			Enabled: true,
			Action:  models.ActionDelete,
		},
		SpamRate: &moderation.RateRule{
			Enabled:      true,
			Action:       models.ActionMute,
			Limit:        5,
			Window:       10 * time.Second,
			MuteDuration: time.Hour,
		},
		Escalation: moderation.EscalationPolicy{
			MuteThreshold: 3,
			KickThreshold: 5,
			MuteDuration:  time.Hour,
			AutoAction:    models.ActionKick,
		},
	}
}

func TestRepository_UpsertAndGetConfig(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertConfig(ctx, testGroupConfig(42)))

	got, err := repo.GetConfig(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, got.GroupID)
	require.NotNil(t, got.LinkFilter)
	assert.Equal(t, models.ActionDelete, got.LinkFilter.Action)
	assert.Nil(t, got.MentionFilter)
	require.NotNil(t, got.SpamRate)
	assert.Equal(t, 5, got.SpamRate.Limit)
	assert.Equal(t, 10*time.Second, got.SpamRate.Window)
	assert.Equal(t, 3, got.Escalation.MuteThreshold)
}

func TestRepository_UpsertConfigReplacesFamilies(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertConfig(ctx, testGroupConfig(42)))

	replacement := testGroupConfig(42)
	replacement.LinkFilter = nil
	replacement.SpamRate.Limit = 20
	require.NoError(t, repo.UpsertConfig(ctx, replacement))

	got, err := repo.GetConfig(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got.LinkFilter, "nil family must clear the stored rule")
	assert.Equal(t, 20, got.SpamRate.Limit)
}

func TestRepository_GetConfigMissing(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)

	_, err := repo.GetConfig(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfigMissing(err))
}

func TestRepository_KeywordUpsertPreservesProvenance(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertConfig(ctx, testGroupConfig(42)))

	addedAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	first := &moderation.KeywordRule{Keyword: "casino", Action: models.ActionWarn, AddedBy: 7, AddedAt: addedAt}
	require.NoError(t, repo.UpsertKeyword(ctx, 42, first))

	// Same keyword with a different action and a different author:
	// action changes, provenance stays.
	second := &moderation.KeywordRule{Keyword: "casino", Action: models.ActionBan, AddedBy: 99, AddedAt: time.Now()}
	require.NoError(t, repo.UpsertKeyword(ctx, 42, second))

	keywords, err := repo.ListKeywords(ctx, 42)
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, models.ActionBan, keywords[0].Action)
	assert.EqualValues(t, 7, keywords[0].AddedBy)
	assert.Equal(t, addedAt, keywords[0].AddedAt.UTC().Truncate(time.Second))
}

func TestRepository_DeleteKeyword(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertKeyword(ctx, 42, &moderation.KeywordRule{Keyword: "casino", Action: models.ActionWarn}))
	require.NoError(t, repo.DeleteKeyword(ctx, 42, "casino"))

	err := repo.DeleteKeyword(ctx, 42, "casino")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestVersioningRepository_VersionsIncrement(t *testing.T) {
	infra := setupInfra(t)

	repo := NewVersioningRepository(infra.db)
	ctx := context.Background()

	v1, err := repo.GetNextVersion(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	require.NoError(t, repo.CreateVersion(ctx, &ConfigVersion{
		GroupID:    42,
		ConfigData: `{"group_id":42}`,
		Version:    v1,
		ChangedBy:  "admin",
	}))

	v2, err := repo.GetNextVersion(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	versions, err := repo.GetVersions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)

	otherGroup, err := repo.GetNextVersion(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, 1, otherGroup, "versions are scoped per group")
}

func TestVersioningRepository_AuditLogs(t *testing.T) {
	infra := setupInfra(t)

	repo := NewVersioningRepository(infra.db)
	ctx := context.Background()

	groupID := int64(42)
	require.NoError(t, repo.CreateAuditLog(ctx, &AuditLog{
		GroupID:    &groupID,
		EntityType: "group_config",
		Action:     models.ChangeActionUpdate,
		ChangedBy:  "admin",
		NewValue:   map[string]interface{}{"group_id": float64(42)},
	}))

	logs, err := repo.GetAuditLogs(ctx, &groupID, "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "group_config", logs[0].EntityType)
	assert.Equal(t, "admin", logs[0].ChangedBy)
	require.NotNil(t, logs[0].NewValue)

	none, err := repo.GetAuditLogs(ctx, nil, "keyword_rule", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshotCache_HitMissInvalidate(t *testing.T) {
	infra := setupInfra(t)

	repo := NewRepository(infra.db)
	cache := NewSnapshotCache(repo, infra.redisClient, time.Minute, logger.NopLogger())
	ctx := context.Background()

	require.NoError(t, repo.UpsertConfig(ctx, testGroupConfig(42)))

	// First read fills the cache from the database.
	cfg, err := cache.Snapshot(ctx, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, cfg.GroupID)

	// A write behind the cache is not visible until invalidation.
	updated := testGroupConfig(42)
	updated.SpamRate.Limit = 50
	require.NoError(t, repo.UpsertConfig(ctx, updated))

	cached, err := cache.Snapshot(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 5, cached.SpamRate.Limit)

	cache.Invalidate(ctx, 42)

	fresh, err := cache.Snapshot(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 50, fresh.SpamRate.Limit)

	_, err = cache.Snapshot(ctx, 999)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfigMissing(err))
}

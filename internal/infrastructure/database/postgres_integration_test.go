//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	itemsvc "easyflip-backend/internal/application/items"
	"easyflip-backend/internal/domain"
	"easyflip-backend/internal/infrastructure/database"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	port := nat.Port("5432/tcp")

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{string(port)},
			Env: map[string]string{
				"POSTGRES_USER":     "easyflip",
				"POSTGRES_PASSWORD": "easyflip",
				"POSTGRES_DB":       "easyflip",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(port),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	mapped, err := ctr.MappedPort(ctx, port)
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://easyflip:easyflip@%s:%s/easyflip?sslmode=disable", host, mapped.Port())
	db, err := database.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestPostgres_ItemsLifecycle(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	svc := &itemsvc.Service{DB: db}

	uid := uuid.New()
	require.NoError(t, db.Create(&domain.User{ID: uid, Email: "pg@test.com"}).Error)

	it, err := svc.Create(ctx, uid, itemsvc.CreateItemInput{SKU: "PG-1", Title: "Wool coat"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, uid, itemsvc.CreateItemInput{SKU: "PG-1", Title: "Another coat"})
	assert.ErrorIs(t, err, itemsvc.ErrDuplicateSKU)

	require.NoError(t, db.Create(&domain.Listing{ItemID: it.ID, UserID: uid, Platforms: []string{"ebay"}}).Error)
	require.NoError(t, svc.Delete(ctx, uid, it.ID))

	var n int64
	require.NoError(t, db.Model(&domain.Listing{}).Where("item_id = ?", it.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPostgres_PgCodeOnUniqueViolation(t *testing.T) {
	db := startPostgres(t)
	require.NoError(t, db.Create(&domain.Subscriber{Email: "dup@test.com", Source: "website"}).Error)
	err := db.Create(&domain.Subscriber{Email: "dup@test.com", Source: "website"}).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.Equal(t, "23505", database.PgCode(err))
}

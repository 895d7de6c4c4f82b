package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"salesmanager/internal/config"
	"salesmanager/internal/infrastructure/storage/memory"
)

func TestOpen(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s, err := Open(ctx, &config.Config{Storage: config.Storage{Driver: config.DriverMemory}}, log)
	require.NoError(t, err)
	assert.IsType(t, &memory.Storage{}, s)
	assert.NoError(t, s.Ping(ctx))
	assert.NotNil(t, s.Stores().Tx)

	_, err = Open(ctx, &config.Config{Storage: config.Storage{Driver: config.DriverPostgres}}, log)
	assert.ErrorContains(t, err, "DATABASE_URI")

	_, err = Open(ctx, &config.Config{Storage: config.Storage{Driver: "mongo"}}, log)
	assert.ErrorContains(t, err, "unknown storage driver")
}

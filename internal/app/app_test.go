package app_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-lane-mixer/internal/app"
	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/internal/mixing"
	"github.com/Raikerian/go-lane-mixer/internal/server"
	pkginfra "github.com/Raikerian/go-lane-mixer/pkg/infrastructure"
)

func TestApplication_Lifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 0

	var srv *server.Server
	application := app.New(
		fx.Supply(cfg),
		fx.Provide(func() *zap.Logger { return zaptest.NewLogger(t) }),
		mixing.Module,
		server.Module,
		fx.Populate(&srv),
		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	)
	require.NoError(t, application.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, application.Start(ctx))
	require.NotNil(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr().String() + server.LanesPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, application.Stop(ctx))
	assert.ErrorIs(t, srv.Start(ctx), server.ErrServerClosed)
}

func TestApplication_MissingDependency(t *testing.T) {
	application := app.New(
		fx.Supply(config.Default()),
		fx.NopLogger,
	)

	assert.Error(t, application.Err())
}

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rcarraroia/comademig/internal/account"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	"github.com/rcarraroia/comademig/internal/fallback"
	"github.com/rcarraroia/comademig/internal/gateway"
	"github.com/rcarraroia/comademig/internal/metricspush"
	"github.com/rcarraroia/comademig/internal/notification"
	"github.com/rcarraroia/comademig/internal/observability"
	"github.com/rcarraroia/comademig/internal/plan"
	"github.com/rcarraroia/comademig/internal/providers"
	"github.com/rcarraroia/comademig/internal/ratelimit"
	"github.com/rcarraroia/comademig/internal/reconciler"
	"github.com/rcarraroia/comademig/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		providers.Module,
		metricspush.Module,

		// Domain services required by the reconciler
		gateway.Module,
		plan.Module,
		account.Module,
		fallback.Module,
		notification.Module,
		reconciler.Module,

		// No server module!
		reconciler.Loop,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}

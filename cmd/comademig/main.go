package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rcarraroia/comademig/internal/account"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	"github.com/rcarraroia/comademig/internal/customer"
	"github.com/rcarraroia/comademig/internal/fallback"
	"github.com/rcarraroia/comademig/internal/gateway"
	"github.com/rcarraroia/comademig/internal/migration"
	"github.com/rcarraroia/comademig/internal/notification"
	"github.com/rcarraroia/comademig/internal/observability"
	"github.com/rcarraroia/comademig/internal/payment"
	"github.com/rcarraroia/comademig/internal/plan"
	"github.com/rcarraroia/comademig/internal/providers"
	"github.com/rcarraroia/comademig/internal/ratelimit"
	"github.com/rcarraroia/comademig/internal/reconciler"
	"github.com/rcarraroia/comademig/internal/registration"
	"github.com/rcarraroia/comademig/internal/server"
	"github.com/rcarraroia/comademig/pkg/db"
	"go.uber.org/fx"
)

// Single-process deployment: HTTP API plus the in-process reconciler loop.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		providers.Module,

		// Functional Domains
		gateway.Module,
		plan.Module,
		customer.Module,
		payment.Module,
		account.Module,
		fallback.Module,
		notification.Module,
		registration.Module,
		reconciler.Module,
		reconciler.Loop,

		server.Module,
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

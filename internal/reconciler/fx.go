package reconciler

import (
	"context"

	"github.com/rcarraroia/comademig/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reconciler",
	fx.Provide(New),
)

// Loop runs the reconciler in the background for the lifetime of the app.
var Loop = fx.Module("reconciler.loop",
	fx.Invoke(StartLoop),
)

func StartLoop(lc fx.Lifecycle, settings *config.RegistrationConfigHolder, log *zap.Logger, r *Reconciler) {
	if settings != nil && !settings.Get().Reconciler.Enabled {
		log.Info("reconciler loop disabled")
		return
	}

	var cancel context.CancelFunc
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				r.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

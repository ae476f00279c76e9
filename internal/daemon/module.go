package daemon

import (
	"context"
	"io"
	"os"

	"github.com/matheus3301/imsg/internal/attachment"
	"github.com/matheus3301/imsg/internal/bus"
	"github.com/matheus3301/imsg/internal/chatdb"
	"github.com/matheus3301/imsg/internal/config"
	"github.com/matheus3301/imsg/internal/imessage"
	"github.com/matheus3301/imsg/internal/lock"
	"github.com/matheus3301/imsg/internal/logging"
	"github.com/matheus3301/imsg/internal/paths"
	"github.com/matheus3301/imsg/internal/poll"
	"github.com/matheus3301/imsg/internal/rpc"
	"github.com/matheus3301/imsg/internal/send"
	"github.com/matheus3301/imsg/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	ConfigPath string
	StorePath  string    // optional override; empty = config, then default
	Input      io.Reader // optional override for testing; nil = stdin
	Output     io.Writer // optional override for testing; nil = stdout
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideResolver,
			provideStager,
			provideRunner,
			provideDispatcher,
			provideEngine,
			provideServer,
			provideService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	path := p.ConfigPath
	if path == "" {
		path = paths.ConfigPath()
	}
	return config.LoadOrInit(path)
}

func provideLogger(*config.Config) (*zap.Logger, error) {
	return logging.New(paths.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock")
	l, err := lock.Acquire(paths.LockPath())
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(p Params, cfg *config.Config, logger *zap.Logger) (*chatdb.DB, error) {
	storePath := p.StorePath
	if storePath == "" {
		storePath = cfg.StorePath
	}
	if storePath == "" {
		storePath = paths.StorePath()
	}
	db, err := chatdb.Open(storePath)
	if err != nil {
		return nil, err
	}
	logger.Info("message store opened", zap.String("path", storePath))
	return db, nil
}

func provideResolver(logger *zap.Logger) *attachment.Resolver {
	return attachment.NewResolver(paths.AttachmentRoot(), paths.TranscodeCacheDir(), logger)
}

func provideStager(cfg *config.Config, logger *zap.Logger) *send.Stager {
	dir := cfg.StagingDir
	if dir == "" {
		dir = paths.StagingDir()
	}
	return send.NewStager(dir, cfg.StagingTTL(), logger)
}

func provideRunner() imessage.Runner {
	return imessage.OsascriptRunner{}
}

func provideDispatcher(cfg *config.Config, runner imessage.Runner, db *chatdb.DB, stager *send.Stager, b *bus.Bus, logger *zap.Logger) *send.Dispatcher {
	outboundRoot := cfg.OutboundDir
	if outboundRoot == "" {
		outboundRoot = paths.OutboundDir()
	}
	policy := send.Policy{
		OutboundRoot:   outboundRoot,
		AllowArbitrary: cfg.AllowArbitraryPaths,
		MaxBytes:       cfg.MaxAttachmentBytes,
	}
	return send.NewDispatcher(runner, db, policy, stager, cfg.PreferredService, b, logger)
}

func provideEngine(cfg *config.Config, db *chatdb.DB, resolver *attachment.Resolver, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *poll.Engine {
	cpStore := poll.NewFileStore(paths.CheckpointPath())
	return poll.NewEngine(db, resolver, cpStore, machine, b, logger, cfg.PollInterval())
}

func provideServer(b *bus.Bus, logger *zap.Logger) *rpc.Server {
	return rpc.NewServer(b, logger)
}

func provideService(d *send.Dispatcher, e *poll.Engine, m *status.Machine, logger *zap.Logger) *rpc.Service {
	return rpc.NewService(d, e, m, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, p Params, srv *rpc.Server, svc *rpc.Service, engine *poll.Engine, machine *status.Machine, lk *lock.Lock, db *chatdb.DB, logger *zap.Logger) {
	in := p.Input
	if in == nil {
		in = os.Stdin
	}
	out := p.Output
	if out == nil {
		out = os.Stdout
	}

	serveCtx, cancelServe := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			svc.Register(srv)
			if err := machine.Transition(status.Idle); err != nil {
				return err
			}

			// Serve the protocol stream; stream closure shuts the
			// daemon down cleanly.
			go func() {
				if err := srv.Serve(serveCtx, in, out); err != nil {
					logger.Error("protocol stream error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()

			logger.Info("daemon started")
			return nil
		},
		OnStop: func(context.Context) error {
			cancelServe()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

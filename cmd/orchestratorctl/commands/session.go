package commands

import (
	"context"

	"conversation-orchestrator/internal/app"
	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/logger"
)

// session is the wired orchestrator a command runs against.
type session struct {
	app   *app.App
	close func()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// openSession connects to the backing services. Tests replace it.
var openSession = func(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// Keep stdout clean for command output.
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")

	infra, err := app.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Sync()
		return nil, err
	}

	a, err := app.Build(cfg, infra, nil, logger.NewZapAdapter(zapLog))
	if err != nil {
		infra.Close()
		zapLog.Sync()
		return nil, err
	}

	return &session{
		app: a,
		close: func() {
			a.Close()
			infra.Close()
			_ = zapLog.Sync()
		},
	}, nil
}

func withSession(ctx context.Context, fn func(s *session) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

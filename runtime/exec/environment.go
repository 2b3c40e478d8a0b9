package exec

import (
	"context"

	"github.com/brimdata/jsoniq/frame/sqlite"
	"github.com/brimdata/jsoniq/pkg/logger"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Environment holds what the queries of a process share: the logger and
// the distributed engine.
type Environment struct {
	logger *zap.Logger
	engine *sqlite.Engine
	config runtime.Config
}

// NewEnvironment builds an environment from conf, registering the engine's
// metrics on reg when it is not nil.  A nil conf uses the defaults.
func NewEnvironment(conf *runtime.FileConfig, reg prometheus.Registerer) (*Environment, error) {
	if conf == nil {
		conf = &runtime.FileConfig{}
	}
	log, err := logger.New(conf.Log)
	if err != nil {
		return nil, err
	}
	engine, err := sqlite.Open(conf.SQLite.DSN, log, reg)
	if err != nil {
		return nil, err
	}
	return &Environment{
		logger: log,
		engine: engine,
		config: runtime.Config{
			MaterializationCap: conf.MaterializationCap,
			Logger:             log,
			Engine:             engine,
		},
	}, nil
}

func (e *Environment) Logger() *zap.Logger {
	return e.logger
}

func (e *Environment) Engine() *sqlite.Engine {
	return e.engine
}

// NewContext returns the root dynamic context of a new query.
func (e *Environment) NewContext(ctx context.Context) *runtime.DynamicContext {
	return runtime.NewRootContext(ctx, e.config)
}

func (e *Environment) Close() error {
	err := e.engine.Close()
	e.logger.Sync()
	return err
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/audit"
	"github.com/sells-group/leadpipe/internal/ingest"
	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/predict"
	"github.com/sells-group/leadpipe/internal/store"
)

// appEnv holds the store and the services shared by the serve, harvest,
// cycle, and score commands.
type appEnv struct {
	Store  store.Store
	Audit  *audit.Logger
	Leads  *leads.Service
	Ingest *ingest.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates config for the given mode, opens and migrates the
// store, and wires the lead and ingest services. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	auditLog := audit.NewLogger(st)
	scrub := leads.NewScrubList(cfg.Compliance)
	leadSvc := leads.NewService(st, scrub, auditLog, cfg.Promotion)

	weights := predict.DefaultWeights()
	if cfg.Predict.SchemaPath != "" {
		weights, err = predict.LoadSchema(cfg.Predict.SchemaPath)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "load weight schema")
		}
		zap.L().Info("weight schema loaded", zap.String("path", cfg.Predict.SchemaPath))
	}

	ingestSvc, err := ingest.NewService(st, leadSvc, auditLog, cfg.Scoring, weights, cfg.Ingest)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		Store:  st,
		Audit:  auditLog,
		Leads:  leadSvc,
		Ingest: ingestSvc,
	}, nil
}

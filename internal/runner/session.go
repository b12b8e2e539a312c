package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/export"
	"github.com/y0f/apifuzz/internal/httpcall"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/storage"
)

// Session bundles the caller and exporters configured for one run.
type Session struct {
	Caller   *httpcall.Caller
	Exporter report.Exporter
	// RunID is the report database id of the run, empty without a database.
	RunID string

	closers []io.Closer
}

// Open builds the caller and the exporters described by cfg. Console
// output goes to out. Expired runs are pruned from the report database
// before the new run is created.
func Open(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*Session, error) {
	caller, err := httpcall.New(httpcall.Options{
		Timeout:          cfg.Target.Timeout,
		RateLimitPerSec:  cfg.Target.RateLimitPerSec,
		RateLimitBurst:   cfg.Target.RateLimitBurst,
		MaxRetries:       cfg.Target.MaxRetries,
		RetryMaxInterval: cfg.Target.RetryMaxInterval,
		HTTP2:            cfg.Target.HTTP2,
		SkipTLSVerify:    cfg.Target.SkipTLSVerify,
		Proxy:            cfg.Target.Proxy,
		MaxBodySize:      cfg.Target.MaxBodySize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("http caller: %w", err)
	}

	s := &Session{Caller: caller}
	exporters := export.Multi{export.NewConsole(out, cfg.Report.Color)}

	if cfg.Report.Dir != "" {
		files, err := export.NewJSONFiles(cfg.Report.Dir)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, files)
	}

	if cfg.Report.DatabasePath != "" {
		store, err := storage.NewSQLiteStore(cfg.Report.DatabasePath, cfg.Report.MaxReadConns)
		if err != nil {
			return nil, fmt.Errorf("open report database: %w", err)
		}
		s.closers = append(s.closers, store)
		logger.Info("report database opened", "path", cfg.Report.DatabasePath)

		// retention failures are logged and do not block the run
		storage.NewRetention(store, cfg.Report.RetentionDays, logger).Purge(ctx)

		db, err := export.NewSQLite(ctx, store, cfg.Contract.Path, cfg.ResolvedBaseURL())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create run: %w", err)
		}
		s.RunID = db.RunID()
		exporters = append(exporters, db)
	}

	s.Exporter = exporters
	return s, nil
}

func (s *Session) Close() error {
	var errs error
	for _, c := range s.closers {
		errs = multierr.Append(errs, c.Close())
	}
	return errs
}

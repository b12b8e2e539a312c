package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fuzz a service using its contract",
	Example: `  apifuzz run --contract petstore.yml --server http://localhost:8080
  apifuzz run -c apifuzz.yml --fuzzers NewFieldsFuzzer --workers 4`,
	RunE: runFuzz,
}

func init() {
	f := runCmd.Flags()
	f.String("contract", "", "path to the OpenAPI contract")
	f.StringSlice("paths", nil, "only fuzz these contract paths")
	f.String("server", "", "base URL of the service under test")
	f.StringToString("header", nil, "extra request header as name=value (repeatable)")
	f.String("proxy", "", "http(s) or socks5 proxy URL")
	f.Bool("http2", false, "negotiate HTTP/2")
	f.Float64("rate", 0, "maximum requests per second")
	f.StringSlice("fuzzers", nil, "only run these fuzzers")
	f.StringSlice("skip-fields", nil, "request fields left alone by field fuzzers, nested as tag#label")
	f.StringToString("expect", nil, "override the code family a fuzzer expects as name=4XX (repeatable)")
	f.Int("workers", 0, "number of concurrent workers")
	f.String("report-dir", "", "directory for JSON reports")
	f.String("db", "", "path to the sqlite report database")
	f.String("metrics-file", "", "write prometheus metrics to this file")
	f.Bool("fail-on-error", false, "exit non-zero when any test case errors")
}

func runFuzz(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting apifuzz", "version", version, "contract", cfg.Contract.Path, "server", cfg.ResolvedBaseURL())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := runner.Open(ctx, cfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer session.Close()
	if session.RunID != "" {
		logger.Info("run created", "run_id", session.RunID)
	}

	res, err := runner.New(cfg, session.Caller, session.Exporter, logger).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("session interrupted", "error", err)
		}
		return err
	}
	if res.Failures > 0 {
		logger.Warn("some test cases could not be exported", "failures", res.Failures)
	}

	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	if failOnError && res.Stats.Errors > 0 {
		return fmt.Errorf("%d test cases ended with an error", res.Stats.Errors)
	}
	return nil
}

// loadConfig reads the config file, applies explicitly set flags on top and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return nil, err
	}

	var ferr error
	cmd.Flags().Visit(func(fl *pflag.Flag) {
		if ferr == nil {
			ferr = applyFlag(cfg, cmd, fl.Name)
		}
	})
	if ferr != nil {
		return nil, ferr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyFlag(cfg *config.Config, cmd *cobra.Command, name string) error {
	f := cmd.Flags()
	var err error
	switch name {
	case "contract":
		cfg.Contract.Path, err = f.GetString(name)
	case "paths":
		cfg.Contract.Paths, err = f.GetStringSlice(name)
	case "server":
		cfg.Target.BaseURL, err = f.GetString(name)
	case "header":
		var headers map[string]string
		headers, err = f.GetStringToString(name)
		if cfg.Target.Headers == nil {
			cfg.Target.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.Target.Headers[k] = v
		}
	case "proxy":
		cfg.Target.Proxy, err = f.GetString(name)
	case "http2":
		cfg.Target.HTTP2, err = f.GetBool(name)
	case "rate":
		cfg.Target.RateLimitPerSec, err = f.GetFloat64(name)
	case "fuzzers":
		cfg.Run.Fuzzers, err = f.GetStringSlice(name)
	case "expect":
		var expect map[string]string
		expect, err = f.GetStringToString(name)
		if cfg.Run.Expect == nil {
			cfg.Run.Expect = make(map[string]string, len(expect))
		}
		for k, v := range expect {
			cfg.Run.Expect[k] = v
		}
	case "skip-fields":
		cfg.Run.SkipFields, err = f.GetStringSlice(name)
	case "workers":
		cfg.Run.Workers, err = f.GetInt(name)
	case "report-dir":
		cfg.Report.Dir, err = f.GetString(name)
	case "db":
		cfg.Report.DatabasePath, err = f.GetString(name)
	case "metrics-file":
		cfg.Report.MetricsFile, err = f.GetString(name)
	case "log-level":
		cfg.Logging.Level, err = f.GetString(name)
	case "color":
		cfg.Report.Color, err = f.GetString(name)
	}
	if err != nil {
		return fmt.Errorf("flag --%s: %w", name, err)
	}
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ruangdeveloper/adbm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli, err := adbm.NewCli(adbm.CliConfig{
		CliName:    "adbm",
		NewManager: openManager,
	})
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if err := cli.Execute(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func openManager(configFile string) (*adbm.Manager, error) {
	cfg, err := adbm.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	driver, err := cfg.OpenDriver()
	if err != nil {
		return nil, err
	}

	manager, err := adbm.NewManager(driver, cfg, logger)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}
	return manager, nil
}

func newLogger(format, level string) (adbm.Logger, error) {
	if format == "json" {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
		logger, err := zcfg.Build()
		if err != nil {
			return nil, err
		}
		return adbm.NewZapLogger(logger), nil
	}

	stderr := colorable.NewColorable(os.Stderr)
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{
		Level:       adbm.ParseLevel(level),
		NoColor:     !isatty.IsTerminal(os.Stderr.Fd()),
		TimeFormat:  "2006-01-02 15:04:05.000",
		ReplaceAttr: adbm.ReplaceLevelNames,
	}))
	slog.SetDefault(logger)

	return adbm.NewSlogLogger(logger), nil
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug", "verbose":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

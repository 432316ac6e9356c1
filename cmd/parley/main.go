package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/parley/config"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/observability"
	"github.com/teilomillet/parley/prompt"
	"github.com/teilomillet/parley/server"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Version is reported by `parley version` and on trace resources.
const Version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "parley",
		Short:        "REST facade over a chat-completion model",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (defaults and PARLEY_* env when empty)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and prompt resources, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := loadTweetSystem(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "parley %s\n", Version)
		},
	}

	rootCmd.AddCommand(serveCmd, validateCmd, versionCmd)
	return rootCmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadFile(path)
}

func loadTweetSystem(cfg *config.Config) (string, error) {
	text, err := prompt.DefaultLoader(cfg.Prompts.Dir).Load(cfg.Prompts.TweetSystemMessage)
	if err != nil {
		return "", fmt.Errorf("load tweet system message: %w", err)
	}
	return text, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := zap.NewAtomicLevel()
	logger, err := server.NewLogger(cfg.Logging, level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	errors.SetLogger(logger)

	tweetSystem, err := loadTweetSystem(cfg)
	if err != nil {
		logger.Error("Prompt resource unavailable", zap.Error(err),
			zap.String("resource", cfg.Prompts.TweetSystemMessage))
		return err
	}

	llm, err := createLLM(cfg.LLM)
	if err != nil {
		logger.Error("Failed to create LLM client", zap.Error(err))
		return err
	}

	tp, err := observability.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	opts := []server.Option{
		server.WithMetrics(metrics.NewMetrics()),
		server.WithTracer(tp.Tracer()),
	}
	if cfg.LLM.MaxContextTokens > 0 {
		counter, err := validation.NewTokenCounter(cfg.LLM.Model)
		if err != nil {
			logger.Warn("Token budget check disabled", zap.Error(err))
		} else {
			opts = append(opts, server.WithTokenCounter(counter))
		}
	}

	srv, err := server.New(cfg, llm, tweetSystem, logger, opts...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if configPath != "" {
		watcher, err := config.NewConfigWatcher(configPath, logger)
		if err != nil {
			logger.Warn("Config hot reload disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				return server.WatchLogLevel(gctx, watcher, level, logger)
			})
		}
	}

	logger.Info("Starting parley",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("tracing", tp.Enabled()),
	)
	return g.Wait()
}

func createLLM(cfg config.LLMConfig) (gollm.LLM, error) {
	llm, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create LLM: %w", err)
	}

	if cfg.Endpoint != "" {
		if err := llm.SetOllamaEndpoint(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("set endpoint: %w", err)
		}
	}
	for key, value := range cfg.Options {
		llm.SetOption(key, value)
	}
	return llm, nil
}

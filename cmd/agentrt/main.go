// Package main provides the agentrt CLI: a small reference harness for
// running an agent loop, serving a long-lived agent over pub/sub, and
// driving the job scheduler.
//
// Basic usage:
//
//	agentrt run --config agentrt.yaml --message "hello"
//	agentrt serve --config agentrt.yaml
//	agentrt schedule --config agentrt.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentrt/internal/agentserver"
	"github.com/haasonsaas/agentrt/internal/config"
	"github.com/haasonsaas/agentrt/internal/observability"
	"github.com/haasonsaas/agentrt/internal/provider"
	"github.com/haasonsaas/agentrt/internal/pubsub"
	"github.com/haasonsaas/agentrt/internal/scheduler"
	"github.com/haasonsaas/agentrt/internal/turn"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentrt",
		Short:        "agentrt - a stateless LLM agent loop, agent server, and job scheduler",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(buildRunCmd(), buildServeCmd(), buildScheduleCmd())
	return root
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveProvider(cfg *config.Config) provider.Provider {
	switch cfg.Provider.Name {
	case "", "echo":
		return provider.Echo()
	default:
		slog.Warn("unknown provider, falling back to echo", "name", cfg.Provider.Name)
		return provider.Echo()
	}
}

// buildRunCmd runs one synchronous Chat exchange and prints the result.
func buildRunCmd() *cobra.Command {
	var configPath string
	var message string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single message through the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := observability.New(observability.LogConfig{Level: parseLevel(cfg.Logging.Level), AddSource: cfg.Logging.AddSource, Output: os.Stderr})

			turnCfg := cfg.ToTurnConfig()
			turnCfg.Provider = resolveProvider(cfg)

			server := agentserver.New(agentserver.Options{Name: "run", Turn: turnCfg, Logger: logger})
			if err := server.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start agent: %w", err)
			}
			defer server.Stop(cmd.Context())

			result, err := server.Chat(cmd.Context(), message)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Text)
			fmt.Fprintf(out, "status=%s turns=%d input_tokens=%d output_tokens=%d\n",
				result.Status, result.Turns, result.Usage.InputTokens, result.Usage.OutputTokens)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&message, "message", "m", "hello", "User message to send")
	return cmd
}

// buildServeCmd starts a long-lived agent server subscribed to an
// in-memory pub/sub bus, and blocks until interrupted.
func buildServeCmd() *cobra.Command {
	var configPath string
	var topic string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a long-lived agent server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := observability.New(observability.LogConfig{Level: parseLevel(cfg.Logging.Level), AddSource: cfg.Logging.AddSource, Output: os.Stderr})

			turnCfg := cfg.ToTurnConfig()
			turnCfg.Provider = resolveProvider(cfg)

			bus := pubsub.NewInMemoryBus(nil)
			server := agentserver.New(agentserver.Options{
				Name:            "serve",
				Turn:            turnCfg,
				PubSub:          bus,
				SubscribeTopics: []string{topic},
				Logger:          logger,
			})
			if err := server.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start agent: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("agentrt serve: listening", "agent_id", server.EffectiveSessionID(), "topic", topic)
			<-ctx.Done()
			return server.Stop(context.Background())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&topic, "topic", "", "Incoming agent_event topic to subscribe to")
	return cmd
}

// buildScheduleCmd installs the configured jobs into a Scheduler and runs
// it until interrupted, printing each job's result as it completes.
func buildScheduleCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured scheduled jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := observability.New(observability.LogConfig{Level: parseLevel(cfg.Logging.Level), AddSource: cfg.Logging.AddSource, Output: os.Stderr})

			turnCfg := cfg.ToTurnConfig()
			turnCfg.Provider = resolveProvider(cfg)

			out := cmd.OutOrStdout()
			runner := func(ctx context.Context, job scheduler.Job) scheduler.Result {
				server := agentserver.New(agentserver.Options{Name: job.Name, Turn: turnCfg, Logger: logger})
				if err := server.Start(ctx); err != nil {
					return scheduler.Result{JobName: job.Name, Error: err.Error()}
				}
				defer server.Stop(ctx)
				result, err := server.Chat(ctx, job.Prompt)
				if err != nil {
					return scheduler.Result{JobName: job.Name, Error: err.Error()}
				}
				return scheduler.Result{JobName: job.Name, Text: result.Text, Turns: result.Turns}
			}

			jobs := make([]scheduler.Job, 0, len(cfg.Scheduler.Jobs))
			for _, j := range cfg.Scheduler.Jobs {
				j := j
				jobs = append(jobs, scheduler.Job{
					Name: j.Name, PeriodMS: j.PeriodMS, CronExpr: j.CronExpr, Prompt: j.Prompt,
					OnResult: func(r scheduler.Result) {
						if r.Error != "" {
							fmt.Fprintf(out, "[%s] error: %s\n", r.JobName, r.Error)
							return
						}
						fmt.Fprintf(out, "[%s] %s\n", r.JobName, r.Text)
					},
				})
			}

			sched := scheduler.New(
				scheduler.WithLogger(logger),
				scheduler.WithRunner(runner),
				scheduler.WithTickInterval(time.Duration(cfg.Scheduler.TickIntervalMS)*time.Millisecond),
			)
			if err := sched.Start(cmd.Context(), jobs); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return sched.Stop(context.Background())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "agentrt.yaml", "Path to YAML configuration file")
	return cmd
}

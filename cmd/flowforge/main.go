package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowforge-io/flowforge"
	"github.com/flowforge-io/flowforge/internal/xjson"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "flowforge",
		Short: "Run and inspect FlowForge workflow definitions",
		Long: `flowforge validates, plans and executes workflow definitions
against the built-in demo node set. Definitions are JSON files in the
FlowForge workflow format.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	root.AddCommand(newValidateCmd(), newPlanCmd(), newRunCmd(), newNodesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newManager() (*flowforge.Manager, error) {
	cfg := flowforge.DefaultConfig()
	if configPath != "" {
		loaded, err := flowforge.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Logger = newLogger()

	manager, err := flowforge.New(cfg)
	if err != nil {
		return nil, err
	}
	for _, plugin := range demoNodes() {
		if err := manager.RegisterNode(plugin); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadDefinition(path string) (*flowforge.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def flowforge.WorkflowDefinition
	if err := xjson.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &def, nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.json>",
		Short: "Validate a workflow definition and report every issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}

			_, err = manager.ValidateWorkflow(def)
			var verr *flowforge.ValidationError
			if errors.As(err, &verr) {
				for _, issue := range verr.Issues {
					fmt.Printf("%-20s %s\n", issue.Code, issue.Message)
				}
				return fmt.Errorf("%d issue(s) found", len(verr.Issues))
			}
			if err != nil {
				return err
			}

			fmt.Println("workflow is valid")
			return nil
		},
	}
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <workflow.json>",
		Short: "Show the execution plan for a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}

			plan, err := manager.PlanWorkflow(def)
			if err != nil {
				return err
			}

			for _, group := range plan.Groups {
				fmt.Printf("group %d  [%s]  cost=%.1f\n", group.Index, group.Strategy, group.TotalCost())
				for _, nodeID := range group.NodeIDs {
					fmt.Printf("  %s\n", nodeID)
				}
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "run <workflow.json>",
		Short: "Execute a workflow definition and wait for it to settle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}

			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}

			globals, err := parseParams(params)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := manager.Start(ctx); err != nil {
				return err
			}
			defer manager.Stop()

			events, unsubscribe := manager.Subscribe()
			defer unsubscribe()
			go func() {
				for event := range events {
					fmt.Printf("event: %s\n", event.EventName())
				}
			}()

			handle, err := manager.StartWorkflow(def, globals)
			if err != nil {
				return err
			}
			fmt.Printf("run %s started\n", handle.RunID())

			go func() {
				<-ctx.Done()
				_ = manager.Cancel(handle.RunID())
			}()

			state, runErr := handle.Wait(context.Background())
			status, err := manager.Status(handle.RunID())
			if err != nil {
				return err
			}

			fmt.Printf("run %s finished: %s\n", handle.RunID(), state)
			fmt.Printf("  succeeded=%d failed=%d skipped=%d retried=%d\n",
				status.Metrics.NodesSucceeded,
				status.Metrics.NodesFailed,
				status.Metrics.NodesSkipped,
				status.Metrics.NodesRetried)

			if runErr != nil {
				return runErr
			}
			if status.LastError != nil {
				return errors.New(*status.LastError)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "global parameter as name=value (repeatable)")
	return cmd
}

func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the registered node types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}

			for _, info := range manager.Registry().List() {
				fmt.Printf("%-12s %-14s %s\n", info.Type, info.Category, info.Description)
			}
			return nil
		},
	}
}

func parseParams(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	globals := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", pair)
		}
		globals[name] = value
	}
	return globals, nil
}

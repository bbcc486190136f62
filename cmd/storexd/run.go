package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/comalice/storex"
	"github.com/comalice/storex/internal/config"
	"github.com/comalice/storex/internal/demo"
)

func runCmd(configPath *string) *cobra.Command {
	var (
		scriptPath string
		exportPath string
		failFast   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a YAML action script",
		Long: `Replay a YAML list of actions into the demo store, printing the
state after each one. With --export the recorded history is written as
YAML.`,
		Example: `  storexd run --script actions.yaml
  storexd run --script actions.yaml --export history.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			f, err := os.Open(scriptPath)
			if err != nil {
				return fmt.Errorf("open script: %w", err)
			}
			actions, err := demo.LoadScript(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("load script %s: %w", scriptPath, err)
			}

			stack, err := demo.NewStore(demo.Options{
				Logger:      logger,
				HistorySize: max(cfg.HistorySize, len(actions)),
				Namespace:   cfg.Namespace,
				Registry:    prometheus.NewRegistry(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, action := range actions {
				if _, err := stack.Store.Dispatch(action); err != nil {
					failed++
					fmt.Fprintf(out, "%3d %-8v error: %v\n", i+1, storex.TypeOf(action), err)
					if failFast {
						break
					}
					continue
				}
				state, err := stack.Store.GetState()
				if err != nil {
					return err
				}
				data, err := json.Marshal(state)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%3d %-8v %s\n", i+1, storex.TypeOf(action), data)
			}

			if exportPath != "" {
				if err := exportHistory(stack, exportPath); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d actions failed", failed, len(actions))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML file with the actions to replay")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the dispatch history to this YAML file")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failing action")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func exportHistory(stack *demo.Stack, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := stack.Inspector.ExportYAML(f); err != nil {
		f.Close()
		return fmt.Errorf("export history: %w", err)
	}
	return f.Close()
}

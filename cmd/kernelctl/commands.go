package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"designgraph/application/commands"
	"designgraph/application/orchestrator"
	"designgraph/application/queries"
	"designgraph/domain/core/valueobjects"
	"designgraph/domain/patch"
	"designgraph/infrastructure/config"
	"designgraph/infrastructure/di"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	dbPath      string
	ledgerDedup bool
	phase       string
	policyFile  string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}

	root := &cobra.Command{
		Use:           "kernelctl",
		Short:         "Operate on design-graph sessions in a local SQLite store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.dbPath, "db", "designgraph.db", "SQLite database path")
	root.PersistentFlags().BoolVar(&gf.ledgerDedup, "ledger-dedup", false, "skip op ids already in the session ledger")
	root.PersistentFlags().StringVar(&gf.phase, "phase", "", "workflow phase override")
	root.PersistentFlags().StringVar(&gf.policyFile, "policy", "", "YAML policy file")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newSessionCmd(gf), newTaskCmd(gf), newPatchCmd(gf))
	return root
}

func newSessionCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Create and inspect sessions"}

	create := &cobra.Command{
		Use:   "create <session-id>",
		Short: "Create an empty graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, gf, func(c *di.Container) (interface{}, error) {
				return c.CommandBus.Send(cmd.Context(), commands.CreateSessionCommand{SessionID: args[0]})
			})
		},
	}

	var layer string
	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the graph, or one layer of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, gf, func(c *di.Container) (interface{}, error) {
				if layer != "" {
					return c.QueryBus.Ask(cmd.Context(), queries.GetLayerViewQuery{SessionID: args[0], Layer: layer})
				}
				return c.QueryBus.Ask(cmd.Context(), queries.GetGraphQuery{SessionID: args[0]})
			})
		},
	}
	show.Flags().StringVar(&layer, "layer", "", "project onto this layer")

	ops := &cobra.Command{
		Use:   "ops <session-id>",
		Short: "List the op ids in the session ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, gf, func(c *di.Container) (interface{}, error) {
				return c.QueryBus.Ask(cmd.Context(), queries.GetAppliedOpsQuery{SessionID: args[0]})
			})
		},
	}

	cmd.AddCommand(create, show, ops)
	return cmd
}

func newTaskCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Run kernel tasks"}

	var (
		rawArgs   string
		requestID string
	)
	run := &cobra.Command{
		Use:   "run <session-id> <task>",
		Short: "Run one task and print the response envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var taskArgs valueobjects.Attrs
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &taskArgs); err != nil {
					return fmt.Errorf("--args: %w", err)
				}
			}
			return withContainer(cmd, gf, func(c *di.Container) (interface{}, error) {
				return c.CommandBus.Send(cmd.Context(), commands.RunTaskCommand{
					SessionID: args[0],
					Task:      args[1],
					RequestID: requestID,
					Args:      taskArgs,
				})
			})
		},
	}
	run.Flags().StringVar(&rawArgs, "args", "", "task arguments as a JSON object")
	run.Flags().StringVar(&requestID, "request-id", "", "request id (generated when empty)")

	cmd.AddCommand(run)
	return cmd
}

func newPatchCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "patch", Short: "Apply reviewed patches"}

	var (
		expected int64
		file     string
	)
	apply := &cobra.Command{
		Use:   "apply <session-id>",
		Short: "Commit a patch against an expected version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPatch(cmd, file)
			if err != nil {
				return err
			}
			return withContainer(cmd, gf, func(c *di.Container) (interface{}, error) {
				return c.CommandBus.Send(cmd.Context(), commands.ApprovePatchCommand{
					SessionID:       args[0],
					ExpectedVersion: expected,
					Patch:           p,
				})
			})
		},
	}
	apply.Flags().Int64Var(&expected, "expected-version", 0, "graph version the patch was built against")
	apply.Flags().StringVarP(&file, "file", "f", "-", "patch JSON file, - for stdin")
	_ = apply.MarkFlagRequired("expected-version")

	cmd.AddCommand(apply)
	return cmd
}

func readPatch(cmd *cobra.Command, file string) (patch.Patch, error) {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return patch.Patch{}, err
		}
		defer f.Close()
		r = f
	}

	var p patch.Patch
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return patch.Patch{}, fmt.Errorf("read patch: %w", err)
	}
	return p, nil
}

// withContainer wires a SQLite-backed container, runs fn and prints its
// result as indented JSON
func withContainer(cmd *cobra.Command, gf *globalFlags, fn func(*di.Container) (interface{}, error)) error {
	cfg := &config.Config{
		Environment:      "development",
		StoreBackend:     config.StoreSQLite,
		SQLitePath:       gf.dbPath,
		LedgerDedup:      gf.ledgerDedup,
		WorkflowPhase:    gf.phase,
		PolicyFile:       gf.policyFile,
		LogLevel:         gf.logLevel,
		AWSRegion:        "us-west-2",
		PolicyDebounceMS: 100,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c, cleanup, err := di.InitializeContainer(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := fn(c)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if resp, ok := result.(*orchestrator.Response); ok && resp.Status == orchestrator.StatusBlocked {
		return fmt.Errorf("blocked: %s", resp.Code)
	}
	return nil
}

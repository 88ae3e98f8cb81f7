package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlens/internal/logging"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import workflow definitions or execution history into the database",
	}
	cmd.AddCommand(newImportWorkflowCmd(a), newImportExecutionsCmd(a))
	return cmd
}

func newImportWorkflowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow FILE",
		Short: "Import or replace a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.readWorkflow(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SaveWorkflow(cmd.Context(), wf); err != nil {
				return err
			}
			logging.LogWith(logging.WithWorkflowID(cmd.Context(), wf.ID), a.logger).
				Info("workflow imported", "nodes", len(wf.Nodes))
			fmt.Fprintln(cmd.OutOrStdout(), wf.ID)
			return nil
		},
	}
}

func newImportExecutionsCmd(a *app) *cobra.Command {
	var workflowID string

	cmd := &cobra.Command{
		Use:   "executions FILE",
		Short: "Append execution history to a stored workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			execs, err := a.readExecutions(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.AppendExecutions(cmd.Context(), workflowID, execs)
			if err != nil {
				return err
			}
			logging.LogWith(logging.WithWorkflowID(cmd.Context(), workflowID), a.logger).
				Info("executions imported", "count", n)
			fmt.Fprintf(cmd.OutOrStdout(), "%d executions imported\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&workflowID, "workflow", "", "ID of the stored workflow (required)")
	_ = cmd.MarkFlagRequired("workflow")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/flowlens/internal/classify"
	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/internal/layout"
	"github.com/rendis/flowlens/internal/validation"
	"github.com/rendis/flowlens/internal/view"
	"github.com/rendis/flowlens/pkg/schema"
)

func newLayoutCmd(a *app) *cobra.Command {
	var dims layout.Dimensions

	cmd := &cobra.Command{
		Use:   "layout WORKFLOW_FILE",
		Short: "Print the positioned graph of a workflow file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.readWorkflow(args[0])
			if err != nil {
				return err
			}
			l := layout.Compute(wf.Nodes, wf.Connections, layout.WithDimensions(dims))
			return writeIndented(cmd.OutOrStdout(), l)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&dims.NodeWidth, "node-width", layout.DefaultDimensions.NodeWidth, "node width")
	f.Float64Var(&dims.NodeHeight, "node-height", layout.DefaultDimensions.NodeHeight, "node height")
	f.Float64Var(&dims.HorizontalGap, "horizontal-gap", layout.DefaultDimensions.HorizontalGap, "gap between layers")
	f.Float64Var(&dims.VerticalGap, "vertical-gap", layout.DefaultDimensions.VerticalGap, "gap between nodes in a layer")
	return cmd
}

// viewFlags are the execution selection flags shared by file commands.
type viewFlags struct {
	environment string
	filter      string
	limit       int
}

func (v *viewFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&v.environment, "environment", "", "only use executions from this environment")
	f.StringVar(&v.filter, "filter", "", `execution predicate, e.g. 'expr:execution.status == "error"'`)
	f.IntVar(&v.limit, "limit", 0, "use only the newest N matching executions")
}

func (v *viewFlags) options() view.Options {
	return view.Options{Environment: v.environment, Filter: v.filter, Limit: v.limit}
}

func newMetricsCmd(a *app) *cobra.Command {
	var (
		vf     viewFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "metrics WORKFLOW_FILE EXECUTIONS_FILE",
		Short: "Aggregate per-node metrics from an execution history file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.readWorkflow(args[0])
			if err != nil {
				return err
			}
			execs, err := a.readExecutions(args[1])
			if err != nil {
				return err
			}
			g, err := a.fileView(cmd.Context(), wf, execs, vf.options())
			if err != nil {
				return err
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), map[string]any{
					"workflowId": g.WorkflowID,
					"metrics":    g.Metrics,
					"summary":    g.Summary,
				})
			}
			return writeMetricsTable(cmd.OutOrStdout(), wf, g)
		},
	}
	vf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newDiagramCmd(a *app) *cobra.Command {
	var (
		vf        viewFlags
		execsPath string
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "diagram WORKFLOW_FILE",
		Short: "Render a workflow file as Mermaid, ASCII or PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := diagram.ParseFormat(format)
			if err != nil {
				return err
			}
			wf, err := a.readWorkflow(args[0])
			if err != nil {
				return err
			}
			var execs []schema.Execution
			if execsPath != "" {
				if execs, err = a.readExecutions(execsPath); err != nil {
					return err
				}
			}
			g, err := a.fileView(cmd.Context(), wf, execs, vf.options())
			if err != nil {
				return err
			}

			out, err := diagram.Render(cmd.Context(), diagram.Build(wf, g.Layout, g.Metrics), f)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, out, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&execsPath, "executions", "", "execution history file for the status overlay")
	cmd.Flags().StringVar(&format, "format", "mermaid", "output format: mermaid, ascii, png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) readWorkflow(path string) (*schema.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	wf, result, err := validation.LoadWorkflow(data, validation.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logWarnings(path, result)
	return wf, nil
}

func (a *app) readExecutions(path string) ([]schema.Execution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	execs, result, err := validation.LoadExecutions(data, validation.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logWarnings(path, result)
	return execs, nil
}

func (a *app) logWarnings(path string, result *schema.ValidationResult) {
	if result == nil {
		return
	}
	for _, w := range result.Warnings {
		a.logger.Warn("document warning", "file", path, "path", w.Path, "message", w.Message)
	}
}

// fileView computes a view over documents read from disk, with the same
// filtering rules the server applies to stored history.
func (a *app) fileView(ctx context.Context, wf *schema.Workflow, execs []schema.Execution, opts view.Options) (*view.Graph, error) {
	svc, err := a.newViews(view.NewStaticSource(wf, execs))
	if err != nil {
		return nil, err
	}
	return svc.Graph(ctx, wf.ID, opts)
}

func writeMetricsTable(w io.Writer, wf *schema.Workflow, g *view.Graph) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tTYPE\tRUNS\tAVG MS\tFAIL %\tLAST\tLAST ERROR")
	for _, n := range wf.Nodes {
		m := g.Metrics[n.ID]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.0f\t%s\t%s\n",
			n.Name,
			classify.FormatDisplayType(n.Type),
			m.ExecutionCount,
			m.AvgDurationMs,
			m.FailureRate*100,
			m.LastStatus,
			m.LastError,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := g.Summary
	fmt.Fprintf(w, "\n%d executions, %d active nodes", s.TotalExecutions, s.ActiveNodes)
	if s.SlowestNodeID != "" {
		fmt.Fprintf(w, ", slowest %s (%.1f ms)", s.SlowestNodeID, s.SlowestAvgMs)
	}
	if len(s.FailingNodes) > 0 {
		fmt.Fprintf(w, ", failing %v", s.FailingNodes)
	}
	fmt.Fprintln(w)
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

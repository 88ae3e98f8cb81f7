package validation

import (
	"fmt"

	"github.com/rendis/flowlens/pkg/schema"
)

// lintWorkflow reports problems the layout engine tolerates but a user
// probably wants to know about. Nodes without an ID fall back to their name.
func lintWorkflow(wf *schema.Workflow, result *schema.ValidationResult) {
	names := make(map[string]bool, len(wf.Nodes))
	ids := make(map[string]bool, len(wf.Nodes))

	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		path := fmt.Sprintf("/nodes/%d", i)

		if n.ID == "" {
			n.ID = n.Name
			result.AddWarning(path+"/id", "missing id, using node name")
		}
		if names[n.Name] {
			result.AddWarning(path+"/name", fmt.Sprintf("duplicate node name %q, only the first is connected", n.Name))
		}
		if ids[n.ID] {
			result.AddWarning(path+"/id", fmt.Sprintf("duplicate node id %q", n.ID))
		}
		names[n.Name] = true
		ids[n.ID] = true
	}

	for source, outputs := range wf.Connections {
		if !names[source] {
			result.AddWarning("/connections/"+source, "source node does not exist, connections ignored")
			continue
		}
		for outputType, slots := range outputs {
			for slot, conns := range slots {
				for j, c := range conns {
					if !names[c.Node] {
						result.AddWarning(
							fmt.Sprintf("/connections/%s/%s/%d/%d", source, outputType, slot, j),
							fmt.Sprintf("target node %q does not exist, connection ignored", c.Node))
					}
				}
			}
		}
	}
}

func lintExecutions(execs []schema.Execution, result *schema.ValidationResult) {
	for i, e := range execs {
		if e.StartedAt.IsZero() {
			result.AddWarning(fmt.Sprintf("/%d/startedAt", i), "missing start time, sorted as oldest")
		}
		if len(e.RunData) == 0 {
			result.AddWarning(fmt.Sprintf("/%d/runData", i), "no run data")
		}
	}
}

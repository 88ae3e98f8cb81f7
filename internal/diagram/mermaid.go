package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// RenderMermaid renders a DiagramModel as a left-to-right Mermaid flowchart.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph LR\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range model.Edges {
		arrow := "-->"
		if edge.ErrorPath {
			arrow = "-.->"
		}
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", mermaidEscapeLabel(edge.Label))
		}
		b.WriteString(fmt.Sprintf("    %s %s%s %s\n",
			mermaidSafeID(edge.From), arrow, label, mermaidSafeID(edge.To)))
	}

	// Status class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef success fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef error fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef running fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef disabled fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	for _, node := range model.Nodes {
		if cls := mermaidClass(node); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition shaped by category.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(node.Label)

	switch node.Category {
	case schema.CategoryTrigger:
		return fmt.Sprintf(`%s(["%s"])`, id, label)
	case schema.CategoryLogic:
		return fmt.Sprintf(`%s{"%s"}`, id, label)
	case schema.CategoryError:
		return fmt.Sprintf(`%s{{"%s"}}`, id, label)
	case schema.CategoryDatabase:
		return fmt.Sprintf(`%s[("%s")]`, id, label)
	case schema.CategoryAI:
		return fmt.Sprintf(`%s[["%s"]]`, id, label)
	case schema.CategoryAPI:
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier. ASCII
// letters and digits pass through; every other byte, "_" included, becomes
// "_" plus two hex digits, so distinct IDs never share an identifier. The
// "n_" prefix keeps IDs such as "end" from colliding with keywords.
func mermaidSafeID(id string) string {
	var b strings.Builder
	b.Grow(len(id) + 2)
	b.WriteString("n_")
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

var mermaidLabelReplacer = strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", " ")

// mermaidEscapeLabel escapes characters that break quoted Mermaid labels.
func mermaidEscapeLabel(s string) string {
	return mermaidLabelReplacer.Replace(s)
}

// mermaidClass picks the class for a node. Disabled wins over status.
func mermaidClass(node *Node) string {
	if node.Disabled {
		return "disabled"
	}
	if node.Status == nil {
		return ""
	}
	switch node.Status.Status {
	case schema.NodeStatusSuccess:
		return "success"
	case schema.NodeStatusError:
		return "error"
	case schema.NodeStatusRunning:
		return "running"
	default:
		return ""
	}
}

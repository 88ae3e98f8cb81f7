package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/flowlens/pkg/schema"
)

// statusTag returns a short ASCII indicator for a node status.
func statusTag(status schema.NodeStatus) string {
	switch status {
	case schema.NodeStatusSuccess:
		return "[OK]"
	case schema.NodeStatusError:
		return "[FAIL]"
	case schema.NodeStatusRunning:
		return "[RUN]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as text: one row of boxes per layer,
// followed by the connection list.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- connections ---\n")
		for _, edge := range model.Edges {
			renderEdge(&b, model, edge)
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{node.Label}
	if node.Subtitle != "" && node.Subtitle != node.Label {
		contentLines = append(contentLines, "("+node.Subtitle+")")
	}
	if node.Disabled {
		contentLines = append(contentLines, "[OFF]")
	}

	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			contentLines = append(contentLines, tag)
		}
		if node.Status.AvgDurationMs > 0 {
			contentLines = append(contentLines, fmt.Sprintf("avg %.0fms", node.Status.AvgDurationMs))
		}
		if node.Status.FailureRate > 0 {
			contentLines = append(contentLines, fmt.Sprintf("%.0f%% failed", node.Status.FailureRate*100))
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		if n := utf8.RuneCountInString(line); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-utf8.RuneCountInString(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ") // gap between boxes
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

func renderEdge(b *strings.Builder, model *DiagramModel, edge Edge) {
	arrow := "─→"
	if edge.ErrorPath {
		arrow = "╌→"
	}
	line := fmt.Sprintf("  %s %s %s", nodeName(model, edge.From), arrow, nodeName(model, edge.To))
	if edge.Label != "" {
		line += " [" + edge.Label + "]"
	}
	b.WriteString(line + "\n")
}

func nodeName(model *DiagramModel, id string) string {
	if n := findNode(model.Nodes, id); n != nil {
		return n.Label
	}
	return id
}

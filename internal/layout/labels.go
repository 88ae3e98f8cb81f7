package layout

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/rendis/flowlens/internal/classify"
	"github.com/rendis/flowlens/pkg/schema"
)

// edgeStyle is the label and animation derived for one edge.
type edgeStyle struct {
	Label    string
	Animated bool
}

// edgeContext is the lookup key for the label table.
type edgeContext struct {
	source      *schema.Node
	branching   bool
	outputType  string
	outputIndex int
}

// labelRule is one row of the edge label table. Every matching row applies,
// in order, so later rows can see the label set by earlier ones.
type labelRule struct {
	name  string
	match func(c edgeContext, s edgeStyle) bool
	apply func(c edgeContext, s *edgeStyle)
}

var labelRules = []labelRule{
	{
		name:  "branch",
		match: func(c edgeContext, _ edgeStyle) bool { return c.branching },
		apply: func(c edgeContext, s *edgeStyle) { s.Label = branchLabel(c) },
	},
	{
		name:  "error-output",
		match: func(c edgeContext, _ edgeStyle) bool { return c.outputType == schema.OutputError },
		apply: func(_ edgeContext, s *edgeStyle) { s.Label, s.Animated = "error", true },
	},
	{
		name: "second-output",
		match: func(c edgeContext, _ edgeStyle) bool {
			return c.outputType != schema.OutputError && c.outputIndex == 1
		},
		apply: func(_ edgeContext, s *edgeStyle) {
			if s.Label == "" {
				s.Label = "false"
			}
			s.Animated = true
		},
	},
	{
		name: "alternate-output",
		match: func(c edgeContext, s edgeStyle) bool {
			return c.outputType != schema.OutputError && c.outputIndex > 1 && s.Label == ""
		},
		apply: func(c edgeContext, s *edgeStyle) { s.Label = fmt.Sprintf("alt %d", c.outputIndex) },
	},
}

// edgeStyleFor runs the label table for an edge leaving source.
func edgeStyleFor(source *schema.Node, outputType string, outputIndex int) edgeStyle {
	c := edgeContext{
		source:      source,
		branching:   classify.IsBranching(source.Type),
		outputType:  outputType,
		outputIndex: outputIndex,
	}
	var s edgeStyle
	for _, r := range labelRules {
		if r.match(c, s) {
			r.apply(c, &s)
		}
	}
	return s
}

// branchKind is the flavour of a branching node.
type branchKind int

const (
	branchOther branchKind = iota
	branchIf
	branchSwitch
	branchSplit
)

func branchKindOf(typ string) branchKind {
	t := strings.ToLower(typ)
	switch {
	case strings.Contains(t, "if"):
		return branchIf
	case strings.Contains(t, "switch"):
		return branchSwitch
	case strings.Contains(t, "split"):
		return branchSplit
	default:
		return branchOther
	}
}

// branchLabel names an output of a branching node.
func branchLabel(c edgeContext) string {
	switch branchKindOf(c.source.Type) {
	case branchIf:
		if c.outputIndex == 0 {
			return "true"
		}
		return "false"
	case branchSwitch:
		if v := switchRuleValue(c.source.Parameters, c.outputIndex); v != "" {
			return v
		}
		return fmt.Sprintf("case %d", c.outputIndex+1)
	case branchSplit:
		return fmt.Sprintf("batch %d", c.outputIndex+1)
	default:
		if c.outputType == schema.OutputError {
			return "error"
		}
		return ""
	}
}

// switchParameters covers the two rule layouts switch nodes have shipped with:
// rules.values[] (outputKey) and the older rules.rules[] (value/outputKey).
type switchParameters struct {
	Rules struct {
		Values []switchRule `mapstructure:"values"`
		Rules  []switchRule `mapstructure:"rules"`
	} `mapstructure:"rules"`
}

type switchRule struct {
	OutputKey string `mapstructure:"outputKey"`
	Value     any    `mapstructure:"value"`
}

// switchRuleValue returns the configured label for a switch output, or "".
func switchRuleValue(params map[string]any, outputIndex int) string {
	if len(params) == 0 {
		return ""
	}

	var p switchParameters
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil || dec.Decode(params) != nil {
		return ""
	}

	rules := p.Rules.Values
	if len(rules) == 0 {
		rules = p.Rules.Rules
	}
	if outputIndex >= len(rules) {
		return ""
	}

	r := rules[outputIndex]
	if r.OutputKey != "" {
		return r.OutputKey
	}
	if r.Value != nil {
		return fmt.Sprint(r.Value)
	}
	return ""
}

// Package classify derives node categories and role flags from node type and
// name strings. Every function is total: unmatched input falls through to the
// default category.
package classify

import (
	"strings"
	"unicode"

	"github.com/rendis/flowlens/pkg/schema"
)

var (
	triggerKeywords   = []string{"trigger", "webhook", "schedule", "cron"}
	errorKeywords     = []string{"error", "catch", "stop"}
	branchingKeywords = []string{"switch", "if", "router", "split"}
)

// rule is one row of the category table. Rows are evaluated in order and the
// first match wins.
type rule struct {
	category schema.Category
	match    func(typ, name string, hasCredentials bool) bool
}

func typeContains(keywords ...string) func(string, string, bool) bool {
	return func(typ, _ string, _ bool) bool {
		return containsAny(typ, keywords)
	}
}

var categoryRules = []rule{
	{schema.CategoryTrigger, func(typ, _ string, _ bool) bool { return IsTrigger(typ) }},
	{schema.CategoryError, func(typ, name string, _ bool) bool { return IsErrorNode(typ, name) }},
	{schema.CategoryLogic, typeContains("switch", "if", "merge", "router")},
	{schema.CategoryDatabase, typeContains("postgres", "mysql", "mongo", "redis", "database")},
	{schema.CategoryAPI, typeContains("http", "api", "webhook", "request")},
	{schema.CategoryCode, typeContains("code", "function", "javascript")},
	{schema.CategoryAI, typeContains("openai", "anthropic", "llm", "ai", "agent", "langchain")},
	{schema.CategoryTransform, typeContains("set", "item", "transform", "convert")},
	{schema.CategoryCredential, func(_, _ string, hasCredentials bool) bool { return hasCredentials }},
}

// IsTrigger reports whether the node type can start a workflow run.
func IsTrigger(typ string) bool {
	return containsAny(typ, triggerKeywords)
}

// IsErrorNode reports whether the node handles or raises errors.
func IsErrorNode(typ, name string) bool {
	return containsAny(typ, errorKeywords) || containsAny(name, []string{"error"})
}

// IsBranching reports whether the node type has semantically distinct outputs.
func IsBranching(typ string) bool {
	return containsAny(typ, branchingKeywords)
}

// Categorize returns the category of the first matching rule, or
// schema.CategoryDefault.
func Categorize(typ, name string, hasCredentials bool) schema.Category {
	typ, name = strings.ToLower(typ), strings.ToLower(name)
	for _, r := range categoryRules {
		if r.match(typ, name, hasCredentials) {
			return r.category
		}
	}
	return schema.CategoryDefault
}

// Classification bundles everything derived from a node's type and name.
type Classification struct {
	Category    schema.Category
	IsTrigger   bool
	IsError     bool
	IsBranching bool
	DisplayType string
}

// Classify runs every classifier against a node.
func Classify(n schema.Node) Classification {
	return Classification{
		Category:    Categorize(n.Type, n.Name, n.HasCredentials()),
		IsTrigger:   IsTrigger(n.Type),
		IsError:     IsErrorNode(n.Type, n.Name),
		IsBranching: IsBranching(n.Type),
		DisplayType: FormatDisplayType(n.Type),
	}
}

// vendorPrefixes are stripped from node types for display. Longer prefixes
// come first so "@n8n/n8n-nodes-langchain." wins over "@n8n/".
var vendorPrefixes = []string{
	"@n8n/n8n-nodes-langchain.",
	"n8n-nodes-langchain.",
	"n8n-nodes-base.",
	"@n8n/",
}

// FormatDisplayType turns "n8n-nodes-base.httpRequest" into "Http Request".
// Display only; no decision logic depends on it.
func FormatDisplayType(typ string) string {
	for _, p := range vendorPrefixes {
		if strings.HasPrefix(typ, p) {
			typ = typ[len(p):]
			break
		}
	}
	if typ == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range typ {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

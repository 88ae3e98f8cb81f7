package diagram

import (
	"context"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// Format selects a renderer.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
	FormatPNG     Format = "png"
)

// ParseFormat accepts a format name case-insensitively; empty means mermaid.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatMermaid, nil
	case FormatMermaid, FormatASCII, FormatPNG:
		return f, nil
	default:
		return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q (want mermaid, ascii or png)", s)
	}
}

// ContentType is the MIME type of the rendered output.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatMermaid:
		return "text/vnd.mermaid; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render renders model in the requested format.
func Render(ctx context.Context, model *DiagramModel, f Format) ([]byte, error) {
	switch f {
	case FormatMermaid:
		return []byte(RenderMermaid(model)), nil
	case FormatASCII:
		return []byte(RenderASCII(model)), nil
	case FormatPNG:
		return RenderImage(ctx, model)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q", f)
	}
}

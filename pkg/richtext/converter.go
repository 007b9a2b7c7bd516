package richtext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/almforge/go-polarion/pkg/core"
)

// Converter renders server-authored HTML as plain text. The zero value
// converts without reference resolution; long item references then fall
// back to the bare item id.
//
// A Converter keeps no state between calls and is safe for concurrent
// use as long as its resolver is.
type Converter struct {
	// Resolver expands long item references into display strings.
	Resolver core.ReferenceResolver
	Logger   *slog.Logger
}

// Convert renders source to plain text.
//
// The outer scan is lenient: whatever the tokenizer accepts passes
// through, with entities decoded. Table markup is held to a stricter
// standard, since a half-read table would silently drop cells: the raw
// table slice is re-parsed as XML and any parse failure aborts the
// conversion with an error wrapping ErrMalformedMarkup. The text
// converted up to that point is returned alongside the error.
func (c *Converter) Convert(ctx context.Context, source string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(source))
	var out strings.Builder
	var table []byte
	depth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return out.String(), err
			}
			break
		}

		if depth > 0 {
			// Inside a table everything is captured raw for the strict
			// re-parse; none of it reaches the output directly.
			table = append(table, z.Raw()...)
			if tt == html.StartTagToken || tt == html.EndTagToken {
				if name, _ := z.TagName(); string(name) == "table" {
					if tt == html.StartTagToken {
						depth++
					} else {
						depth--
						if depth == 0 {
							if err := c.flushTable(table, &out); err != nil {
								return out.String(), err
							}
							table = table[:0]
						}
					}
				}
			}
			continue
		}

		switch tt {
		case html.TextToken:
			out.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			name, hasAttr := z.TagName()
			switch string(name) {
			case "table":
				if tt == html.StartTagToken {
					table = append(table[:0], raw...)
					depth = 1
				}
			case "span":
				if hasAttr {
					if err := c.handleSpan(ctx, z, &out); err != nil {
						return out.String(), err
					}
				}
			}
		}
	}

	if depth > 0 {
		return out.String(), fmt.Errorf("%w: table never closed", ErrMalformedMarkup)
	}
	return out.String(), nil
}

// handleSpan expands the two span classes the server embeds in rich
// text. Any other span passes silently; its text content arrives as
// ordinary text tokens.
func (c *Converter) handleSpan(ctx context.Context, z *html.Tokenizer, out *strings.Builder) error {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		attrs[string(key)] = string(val)
		if !more {
			break
		}
	}

	switch attrs["class"] {
	case "polarion-rte-link":
		return c.writeItemReference(ctx, attrs, out)
	case "polarion-rte-formula":
		out.WriteString(attrs["data-source"])
	}
	return nil
}

// writeItemReference emits an item reference. Short display mode, and
// long mode without a resolver, emit the bare item id; long mode with a
// resolver emits whatever the resolver answers.
func (c *Converter) writeItemReference(ctx context.Context, attrs map[string]string, out *strings.Builder) error {
	itemID := attrs["data-item-id"]
	if attrs["data-option-id"] == "short" || c.Resolver == nil {
		out.WriteString(itemID)
		return nil
	}
	display, err := c.Resolver.ResolveReference(ctx, itemID)
	if err != nil {
		return fmt.Errorf("resolve reference %s: %w", itemID, err)
	}
	out.WriteString(display)
	return nil
}

func (c *Converter) flushTable(raw []byte, out *strings.Builder) error {
	grid, err := parseTableGrid(raw)
	if err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Debug("table rendered", "rows", len(grid))
	}
	out.WriteString(renderGrid(grid))
	return nil
}

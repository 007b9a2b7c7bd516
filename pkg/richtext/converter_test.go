package richtext

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeResolver struct {
	titles map[string]string
	err    error
}

func (r *fakeResolver) ResolveReference(ctx context.Context, itemID string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.titles[itemID], nil
}

func convert(t *testing.T, c *Converter, source string) string {
	t.Helper()
	got, err := c.Convert(context.Background(), source)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	return got
}

func TestConvertPassesTextThrough(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"Plain Paragraph", "<p>hello</p>", "hello"},
		{"Empty Input", "", ""},
		{"No Markup At All", "just text", "just text"},
		{"Line Breaks Produce Nothing", "first<br/>second", "firstsecond"},
		{"Entities Decoded", "a &amp; b", "a & b"},
		{"Nested Inline Tags", "<p><b>bold</b> and plain</p>", "bold and plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Converter
			if got := convert(t, &c, tt.source); got != tt.want {
				t.Errorf("Convert() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertFormulaSpan(t *testing.T) {
	var c Converter
	source := `<span data-source="x &gt; 1" data-inline="false" class="polarion-rte-formula"></span>`
	if got := convert(t, &c, source); got != "x > 1" {
		t.Errorf("Convert() = %q, want the formula source", got)
	}
}

func TestConvertItemReferences(t *testing.T) {
	source := `<span class="polarion-rte-link" data-type="workItem" id="fake" data-item-id="PYTH-510" data-option-id="long"></span>` +
		`<span class="polarion-rte-link" data-type="workItem" id="fake" data-item-id="PYTH-510" data-option-id="short"></span>`

	t.Run("With Resolver", func(t *testing.T) {
		c := Converter{Resolver: &fakeResolver{titles: map[string]string{
			"PYTH-510": "PYTH-510: title of 510",
		}}}
		// The long reference resolves, the short one stays an id.
		want := "PYTH-510: title of 510PYTH-510"
		if got := convert(t, &c, source); got != want {
			t.Errorf("Convert() = %q, want %q", got, want)
		}
	})

	t.Run("Without Resolver Falls Back To Short", func(t *testing.T) {
		var c Converter
		want := "PYTH-510PYTH-510"
		if got := convert(t, &c, source); got != want {
			t.Errorf("Convert() = %q, want %q", got, want)
		}
	})

	t.Run("Resolver Failure Aborts", func(t *testing.T) {
		boom := errors.New("lookup failed")
		c := Converter{Resolver: &fakeResolver{err: boom}}
		_, err := c.Convert(context.Background(), source)
		if !errors.Is(err, boom) {
			t.Errorf("Convert() error = %v, want the resolver failure", err)
		}
	})

	t.Run("Self Closing Span", func(t *testing.T) {
		var c Converter
		selfClosing := `<span class="polarion-rte-link" data-item-id="WI-5" data-option-id="short"/>`
		if got := convert(t, &c, selfClosing); got != "WI-5" {
			t.Errorf("Convert() = %q, want WI-5", got)
		}
	})
}

func TestConvertTableToGrid(t *testing.T) {
	source := `big text<br/>
normal text<br/>
<span data-source="a=b" data-inline="false" class="polarion-rte-formula"></span>
<table id="polarion_wiki macro name=table" class="polarion-Document-table" style="width: 80%;border: 1px solid #CCCCCC;">
  <tbody>
    <tr>
      <th style="font-weight: bold;">1</th>
      <th style="font-weight: bold;">2</th>
    </tr>
    <tr>
      <td style="text-align: left;">3</td>
      <td style="text-align: left;">4</td>
    </tr>
  </tbody>
</table>
<br/>`

	var c Converter
	got := convert(t, &c, source)

	// Cell content and row order matter; exact border art is the
	// writer's business. Spaces are ignored like the width padding.
	squeezed := strings.ReplaceAll(got, " ", "")
	if !strings.HasPrefix(squeezed, "bigtext\nnormaltext\na=b\n") {
		t.Errorf("text before the table mangled: %q", got)
	}
	header := strings.Index(squeezed, "|1|2|")
	data := strings.Index(squeezed, "|3|4|")
	if header == -1 || data == -1 {
		t.Fatalf("table rows missing from output: %q", got)
	}
	if header > data {
		t.Error("header row rendered after the data row")
	}
	if !strings.Contains(squeezed, "+---+---+") {
		t.Errorf("grid borders missing: %q", got)
	}
	// Raw table markup must never leak through.
	if strings.Contains(got, "<td") || strings.Contains(got, "tbody") {
		t.Errorf("table markup leaked into output: %q", got)
	}
}

func TestConvertTwoTablesOnOneLine(t *testing.T) {
	source := `<p>before</p><table><tr><th>a</th></tr></table><table><tr><th>b</th></tr></table>`

	var c Converter
	got := convert(t, &c, source)

	if !strings.Contains(got, "| a |") || !strings.Contains(got, "| b |") {
		t.Errorf("both tables should render: %q", got)
	}
	if strings.Index(got, "| a |") > strings.Index(got, "| b |") {
		t.Error("tables rendered out of order")
	}
}

func TestConvertMalformedTable(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{
			name:   "Mismatched Row Close",
			source: "<p>intro</p><table><tr><td>a</td></tr2></table>",
		},
		{
			name:   "Table Never Closed",
			source: "<p>intro</p><table><tr><td>dangling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Converter
			got, err := c.Convert(context.Background(), tt.source)
			if !errors.Is(err, ErrMalformedMarkup) {
				t.Fatalf("Convert() error = %v, want ErrMalformedMarkup", err)
			}
			// Text already converted is kept for the caller to use.
			if got != "intro" {
				t.Errorf("partial output = %q, want %q", got, "intro")
			}
		})
	}
}

func TestStrip(t *testing.T) {
	coreText := "Lorem ipsum dolor sit amet, consectetur adipiscing elit."
	raw := `<p><img src="bla"/>` + coreText + `</p></br>`

	if got := Strip(raw); got != coreText {
		t.Errorf("Strip() = %q, want %q", got, coreText)
	}
}

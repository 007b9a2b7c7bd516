package richtext

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// ErrMalformedMarkup marks a table slice that did not survive the
// strict re-parse. Callers match it with errors.Is and decide whether
// to keep the partial conversion.
var ErrMalformedMarkup = errors.New("malformed table markup")

// parseTableGrid re-parses a captured table slice as XML and walks its
// rows into a row-major grid, cells in document order. All character
// data inside a cell counts, including text nested below child
// elements.
func parseTableGrid(raw []byte) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Entity = xml.HTMLEntity
	dec.AutoClose = xml.HTMLAutoClose

	var grid [][]string
	var row []string
	var cell strings.Builder
	inRow, inCell := false, false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMarkup, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tr":
				inRow = true
				row = []string{}
			case "th", "td":
				if inRow {
					inCell = true
					cell.Reset()
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tr":
				if inRow {
					grid = append(grid, row)
					inRow = false
				}
			case "th", "td":
				if inCell {
					row = append(row, cell.String())
					inCell = false
				}
			}
		case xml.CharData:
			if inCell {
				cell.Write(t)
			}
		}
	}
	return grid, nil
}

// renderGrid draws the grid as fixed-width character art. The first row
// is always treated as the header row, whether it came from th or td
// cells.
func renderGrid(grid [][]string) string {
	if len(grid) == 0 {
		return ""
	}
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(grid[0])
	for _, row := range grid[1:] {
		table.Append(row)
	}
	table.Render()
	return buf.String()
}

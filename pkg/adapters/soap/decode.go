package soap

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/almforge/go-polarion/internal/soapenv"
	"github.com/almforge/go-polarion/pkg/core"
)

// dateTimeLayouts are tried in order when parsing timestamp text. The
// services emit millisecond UTC stamps, but zoned and second-precision
// variants show up depending on server configuration.
var dateTimeLayouts = []string{
	dateTimeLayout,
	"2006-01-02T15:04:05.000-07:00",
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	dateLayout,
}

// arrayMembers names the member elements of the list types the
// services return. A parent whose children all carry one of these
// names decodes as a list.
var arrayMembers = map[string]bool{
	"Approval":                 true,
	"Attachment":               true,
	"Category":                 true,
	"Comment":                  true,
	"Custom":                   true,
	"EnumOption":               true,
	"EnumOptionId":             true,
	"ExternallyLinkedWorkItem": true,
	"Hyperlink":                true,
	"LinkedWorkItem":           true,
	"Plan":                     true,
	"PlanRecord":               true,
	"Revision":                 true,
	"SubterraURI":              true,
	"TestRecord":               true,
	"TestRun":                  true,
	"TestRunAttachment":        true,
	"TestStep":                 true,
	"TestStepResult":           true,
	"Text":                     true,
	"User":                     true,
	"WorkItem":                 true,
	"WorkRecord":               true,
	"WorkflowAction":           true,
	"item":                     true,
}

// decodeRecord converts a returned entity element into a record. The
// kind's schema settles the type of each declared field; everything
// else falls back to shape heuristics.
func decodeRecord(node *soapenv.Node, kind core.Kind) core.Record {
	if node == nil || node.Nil() {
		return core.Record{Unresolvable: true}
	}
	uri := node.Attr("uri")
	if node.Attr("unresolvable") == "true" {
		return core.Record{URI: uri, Unresolvable: true}
	}
	return core.NewRecord(uri, decodeFields(node, core.SchemaFor(kind)))
}

func decodeFields(node *soapenv.Node, schema core.Schema) core.Fields {
	fields := make(core.Fields, len(node.Children))
	for _, child := range node.Children {
		if child.Nil() {
			fields[child.Name] = nil
			continue
		}
		// Custom fields fold into a flat key to value map so they
		// diff and patch like any other field.
		if child.Name == "customFields" {
			fields[child.Name] = decodeCustomEntries(child)
			continue
		}
		kind, declared := schema[child.Name]
		if !declared {
			fields[child.Name] = decodeAny(child)
			continue
		}
		fields[child.Name] = decodeTyped(child, kind)
	}
	return fields
}

func decodeTyped(node *soapenv.Node, kind core.FieldKind) any {
	switch kind {
	case core.FieldString:
		return node.Text
	case core.FieldBool:
		v, _ := strconv.ParseBool(strings.TrimSpace(node.Text))
		return v
	case core.FieldInt:
		v, _ := strconv.Atoi(strings.TrimSpace(node.Text))
		return v
	case core.FieldFloat:
		v, _ := strconv.ParseFloat(strings.TrimSpace(node.Text), 64)
		return v
	case core.FieldDate:
		return parseDate(node.Text)
	case core.FieldTime:
		return parseDateTime(node.Text)
	case core.FieldEnum:
		return core.Enum{ID: node.ChildText("id")}
	case core.FieldText:
		return decodeText(node)
	case core.FieldRef:
		if uri := node.Attr("uri"); uri != "" {
			return core.Ref{URI: uri}
		}
		return core.Ref{URI: strings.TrimSpace(node.Text)}
	case core.FieldList:
		return decodeList(node)
	case core.FieldStruct:
		return decodeStruct(node)
	default:
		return decodeAny(node)
	}
}

// decodeAny decodes a value with no declared kind by its shape.
func decodeAny(node *soapenv.Node) any {
	if node.Nil() {
		return nil
	}
	if len(node.Children) == 0 {
		if uri := node.Attr("uri"); uri != "" && strings.TrimSpace(node.Text) == "" {
			return core.Ref{URI: uri}
		}
		return node.Text
	}
	if isList(node) {
		return decodeList(node)
	}
	if len(node.Children) == 1 && node.Children[0].Name == "id" && len(node.Children[0].Children) == 0 {
		return core.Enum{ID: node.Children[0].Text}
	}
	if node.Child("content") != nil && node.Child("type") != nil {
		return decodeText(node)
	}
	return decodeStruct(node)
}

func isList(node *soapenv.Node) bool {
	if len(node.Children) == 0 || !arrayMembers[node.Children[0].Name] {
		return false
	}
	first := node.Children[0].Name
	for _, child := range node.Children[1:] {
		if child.Name != first {
			return false
		}
	}
	return true
}

func decodeList(node *soapenv.Node) []any {
	items := make([]any, 0, len(node.Children))
	for _, child := range node.Children {
		items = append(items, decodeAny(child))
	}
	return items
}

func decodeStruct(node *soapenv.Node) core.Fields {
	fields := make(core.Fields, len(node.Children)+1)
	if uri := node.Attr("uri"); uri != "" {
		fields["uri"] = uri
	}
	for _, child := range node.Children {
		if child.Nil() {
			fields[child.Name] = nil
			continue
		}
		fields[child.Name] = decodeAny(child)
	}
	return fields
}

func decodeText(node *soapenv.Node) core.Text {
	lossy, _ := strconv.ParseBool(strings.TrimSpace(node.ChildText("contentLossy")))
	return core.Text{
		Type:    node.ChildText("type"),
		Content: node.ChildText("content"),
		Lossy:   lossy,
	}
}

// decodeCustomEntries folds the wire array of key and value pairs into
// a flat field map.
func decodeCustomEntries(node *soapenv.Node) core.Fields {
	custom := make(core.Fields, len(node.Children))
	for _, entry := range node.Children {
		key := entry.ChildText("key")
		if key == "" {
			continue
		}
		value := entry.Child("value")
		if value == nil || value.Nil() {
			custom[key] = nil
			continue
		}
		custom[key] = decodeAny(value)
	}
	return custom
}

func parseDate(text string) any {
	t, err := time.Parse(dateLayout, strings.TrimSpace(text))
	if err != nil {
		return nil
	}
	return t
}

func parseDateTime(text string) any {
	trimmed := strings.TrimSpace(text)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t
		}
	}
	return nil
}

// decodeBinary decodes a base64 payload, the wire form of attachment
// content.
func decodeBinary(node *soapenv.Node) ([]byte, error) {
	var compact strings.Builder
	for _, r := range node.Text {
		if r != ' ' && r != '\n' && r != '\r' && r != '\t' {
			compact.WriteRune(r)
		}
	}
	return base64.StdEncoding.DecodeString(compact.String())
}

// stringItems collects the text of every member of a string array
// response, e.g. custom field key lists.
func stringItems(node *soapenv.Node) []string {
	if node == nil {
		return nil
	}
	items := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		items = append(items, strings.TrimSpace(child.Text))
	}
	return items
}

// returnNode unwraps the single return element of an operation
// response, or nil for void operations.
func returnNode(resp *soapenv.Response) *soapenv.Node {
	wrapper := resp.First()
	if wrapper == nil || len(wrapper.Children) == 0 {
		return nil
	}
	for _, child := range wrapper.Children {
		if strings.HasSuffix(child.Name, "Return") {
			return child
		}
	}
	return wrapper.Children[0]
}

// returnedRecord unwraps the entity payload of a response. A missing
// or nil return element maps to an unresolvable stub, which the sync
// layer reports as not found.
func returnedRecord(resp *soapenv.Response, kind core.Kind) core.Record {
	return decodeRecord(returnNode(resp), kind)
}

// returnedRecords decodes a search response into one record per hit.
func returnedRecords(resp *soapenv.Response, kind core.Kind) []core.Record {
	ret := returnNode(resp)
	if ret == nil {
		return nil
	}
	records := make([]core.Record, 0, len(ret.Children))
	for _, item := range ret.Children {
		records = append(records, decodeRecord(item, kind))
	}
	return records
}

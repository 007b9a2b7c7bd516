package soap

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/almforge/go-polarion/pkg/core"
)

const (
	xsiNS   = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNS   = "http://www.w3.org/2001/XMLSchema"
	typesNS = "http://ws.polarion.com/types"

	dateTimeLayout = "2006-01-02T15:04:05.000Z"
	dateLayout     = "2006-01-02"
)

// operation names one remote call and its ordered arguments.
type operation struct {
	Service string
	Name    string
	Args    []element
}

func (o operation) namespace() string {
	return "http://ws.polarion.com/" + o.Service + "WebService-impl"
}

// MarshalXML renders the operation element with a literal prefix. The
// stock encoder rewrites unknown prefixes, so the prefix is baked into
// the element name instead.
func (o operation) MarshalXML(enc *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "web:" + o.Name},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns:web"}, Value: o.namespace()}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, a := range o.Args {
		if err := a.encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

// element is one argument or nested value of a request body.
type element struct {
	name     string
	attrs    []xml.Attr
	text     string
	isNil    bool
	children []element
}

func (e element) encode(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: e.name}, Attr: e.attrs}
	if e.isNil {
		start.Attr = append(start.Attr,
			xml.Attr{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNS},
			xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"},
		)
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if e.text != "" {
		if err := enc.EncodeToken(xml.CharData(e.text)); err != nil {
			return err
		}
	}
	for _, child := range e.children {
		if err := child.encode(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func stringArg(name, v string) element { return element{name: name, text: v} }

func boolArg(name string, v bool) element {
	return element{name: name, text: strconv.FormatBool(v)}
}

func intArg(name string, v int) element {
	return element{name: name, text: strconv.Itoa(v)}
}

func nilArg(name string) element { return element{name: name, isNil: true} }

func structArg(name string, children ...element) element {
	return element{name: name, children: children}
}

func enumArg(name, id string) element {
	return element{name: name, children: []element{{name: "id", text: id}}}
}

func textArg(name string, t core.Text) element {
	return element{name: name, children: []element{
		{name: "type", text: t.Type},
		{name: "content", text: t.Content},
		{name: "contentLossy", text: strconv.FormatBool(t.Lossy)},
	}}
}

// dataArg carries binary content as base64, the wire form of
// attachment payloads.
func dataArg(name string, data []byte) element {
	return element{name: name, text: base64.StdEncoding.EncodeToString(data)}
}

// uriAttr marks an entity element with its subterra identity.
func uriAttr(uri string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: "uri"}, Value: uri}
}

// itemNames maps list fields to the element name of their members.
var itemNames = map[string]string{
	"allowedTypes":              "EnumOptionId",
	"approvals":                 "Approval",
	"assignee":                  "User",
	"attachments":               "Attachment",
	"categories":                "Category",
	"comments":                  "Comment",
	"customFields":              "Custom",
	"externallyLinkedWorkItems": "ExternallyLinkedWorkItem",
	"hyperlinks":                "Hyperlink",
	"linkedRevisions":           "Revision",
	"linkedRevisionsDerived":    "Revision",
	"linkedWorkItems":           "LinkedWorkItem",
	"linkedWorkItemsDerived":    "LinkedWorkItem",
	"plannedIn":                 "Plan",
	"records":                   "TestRecord",
	"steps":                     "TestStep",
	"testStepResults":           "TestStepResult",
	"testSteps":                 "TestStep",
	"workRecords":               "WorkRecord",
}

func itemName(listName string) string {
	if n, ok := itemNames[listName]; ok {
		return n
	}
	return "item"
}

// fieldElement renders one projected field value. The declared kind
// settles date against dateTime formatting; everything else follows
// the value's own type.
func fieldElement(name string, v any, kind core.FieldKind) (element, error) {
	if v == nil {
		return nilArg(name), nil
	}
	switch t := v.(type) {
	case string:
		return stringArg(name, t), nil
	case bool:
		return boolArg(name, t), nil
	case int:
		return intArg(name, t), nil
	case float64:
		return element{name: name, text: strconv.FormatFloat(t, 'f', -1, 64)}, nil
	case time.Time:
		if kind == core.FieldDate {
			return stringArg(name, t.Format(dateLayout)), nil
		}
		return stringArg(name, t.UTC().Format(dateTimeLayout)), nil
	case core.Enum:
		return enumArg(name, t.ID), nil
	case core.Text:
		return textArg(name, t), nil
	case core.Ref:
		// Reference fields carry the subterra URI as text.
		return stringArg(name, t.URI), nil
	case []byte:
		return dataArg(name, t), nil
	case core.Fields:
		el := element{name: name}
		if uri, ok := t["uri"].(string); ok {
			el.attrs = []xml.Attr{uriAttr(uri)}
		}
		for _, childName := range t.Names() {
			if childName == "uri" {
				continue
			}
			child, err := fieldElement(childName, t[childName], 0)
			if err != nil {
				return element{}, err
			}
			el.children = append(el.children, child)
		}
		return el, nil
	case []any:
		el := element{name: name}
		member := itemName(name)
		for _, item := range t {
			child, err := fieldElement(member, item, 0)
			if err != nil {
				return element{}, err
			}
			el.children = append(el.children, child)
		}
		return el, nil
	default:
		return element{}, fmt.Errorf("field %s: cannot encode %T", name, v)
	}
}

// customValueElement types the polymorphic value member of a custom
// field entry so the server can decode it.
func customValueElement(v any) (element, error) {
	typed := func(xsiType string) []xml.Attr {
		return []xml.Attr{
			{Name: xml.Name{Local: "xmlns:xsd"}, Value: xsdNS},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNS},
			{Name: xml.Name{Local: "xsi:type"}, Value: xsiType},
		}
	}
	polarionTyped := func(xsiType string) []xml.Attr {
		return []xml.Attr{
			{Name: xml.Name{Local: "xmlns:pol"}, Value: typesNS},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: xsiNS},
			{Name: xml.Name{Local: "xsi:type"}, Value: "pol:" + xsiType},
		}
	}
	switch t := v.(type) {
	case nil:
		return nilArg("value"), nil
	case string:
		return element{name: "value", text: t, attrs: typed("xsd:string")}, nil
	case bool:
		return element{name: "value", text: strconv.FormatBool(t), attrs: typed("xsd:boolean")}, nil
	case int:
		return element{name: "value", text: strconv.Itoa(t), attrs: typed("xsd:int")}, nil
	case float64:
		return element{name: "value", text: strconv.FormatFloat(t, 'f', -1, 64), attrs: typed("xsd:float")}, nil
	case time.Time:
		return element{name: "value", text: t.UTC().Format(dateTimeLayout), attrs: typed("xsd:dateTime")}, nil
	case core.Enum:
		el := enumArg("value", t.ID)
		el.attrs = polarionTyped("EnumOptionId")
		return el, nil
	case core.Text:
		el := textArg("value", t)
		el.attrs = polarionTyped("Text")
		return el, nil
	default:
		return element{}, fmt.Errorf("custom field value: cannot encode %T", v)
	}
}

// customFieldsElement renders the custom field map as the wire array
// of key and typed value pairs, in key order.
func customFieldsElement(name string, custom core.Fields) (element, error) {
	el := element{name: name}
	for _, key := range custom.Names() {
		value, err := customValueElement(custom[key])
		if err != nil {
			return element{}, fmt.Errorf("custom field %s: %w", key, err)
		}
		el.children = append(el.children, element{name: "Custom", children: []element{
			{name: "key", text: key},
			value,
		}})
	}
	return el, nil
}

// entityElement renders a create or update payload: the entity's
// changed fields in name order, with the uri attribute naming the
// target for updates.
func entityElement(name, uri string, kind core.Kind, fields core.Fields) (element, error) {
	el := element{name: name}
	if uri != "" {
		el.attrs = []xml.Attr{uriAttr(uri)}
	}
	schema := core.SchemaFor(kind)
	for _, fieldName := range fields.Names() {
		v := fields[fieldName]
		var child element
		var err error
		if fieldName == "customFields" {
			if custom, ok := v.(core.Fields); ok {
				child, err = customFieldsElement(fieldName, custom)
			} else {
				child, err = fieldElement(fieldName, v, schema[fieldName])
			}
		} else {
			child, err = fieldElement(fieldName, v, schema[fieldName])
		}
		if err != nil {
			return element{}, err
		}
		el.children = append(el.children, child)
	}
	return el, nil
}

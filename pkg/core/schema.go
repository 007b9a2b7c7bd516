package core

// FieldKind describes the wire shape of a declared field, used by
// transports to decode leaf values into the right algebra type.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldBool
	FieldInt
	FieldFloat
	FieldTime
	FieldDate
	FieldEnum
	FieldText
	FieldRef
	FieldList
	FieldStruct
)

// Schema declares the fields a record variant carries. It drives typed
// decoding and rejects unknown field names when creating entities.
// Custom fields are deliberately outside the schema; they are gated by
// the server-side allow-list instead.
type Schema map[string]FieldKind

// Allows reports whether the field name is declared.
func (s Schema) Allows(name string) bool {
	_, ok := s[name]
	return ok
}

// SchemaFor returns the declared schema for a kind, or nil when the
// kind carries no declared field set. A nil schema disables the
// unknown-field gate.
func SchemaFor(k Kind) Schema {
	switch k {
	case KindWorkItem:
		return workItemSchema
	case KindPlan:
		return planSchema
	case KindUser:
		return userSchema
	case KindTestRun:
		return testRunSchema
	case KindProject:
		return projectSchema
	case KindDocument:
		return documentSchema
	default:
		return nil
	}
}

var workItemSchema = Schema{
	"id":                        FieldString,
	"title":                     FieldString,
	"description":               FieldText,
	"type":                      FieldEnum,
	"status":                    FieldEnum,
	"resolution":                FieldEnum,
	"severity":                  FieldEnum,
	"priority":                  FieldEnum,
	"author":                    FieldStruct,
	"assignee":                  FieldList,
	"approvals":                 FieldList,
	"attachments":               FieldList,
	"categories":                FieldList,
	"comments":                  FieldList,
	"hyperlinks":                FieldList,
	"linkedWorkItems":           FieldList,
	"linkedWorkItemsDerived":    FieldList,
	"linkedRevisions":           FieldList,
	"linkedRevisionsDerived":    FieldList,
	"externallyLinkedWorkItems": FieldList,
	"plannedIn":                 FieldList,
	"workRecords":               FieldList,
	"customFields":              FieldStruct,
	"project":                   FieldStruct,
	"created":                   FieldTime,
	"updated":                   FieldTime,
	"dueDate":                   FieldDate,
	"plannedStart":              FieldTime,
	"plannedEnd":                FieldTime,
	"resolvedOn":                FieldTime,
	"timePoint":                 FieldStruct,
	"initialEstimate":           FieldString,
	"remainingEstimate":         FieldString,
	"timeSpent":                 FieldString,
	"previousStatus":            FieldEnum,
	"outlineNumber":             FieldString,
	"moduleURI":                 FieldRef,
	"location":                  FieldString,
}

var planSchema = Schema{
	"id":                    FieldString,
	"name":                  FieldString,
	"description":           FieldText,
	"allowedTypes":          FieldList,
	"authorURI":             FieldRef,
	"calculationType":       FieldEnum,
	"capacity":              FieldFloat,
	"color":                 FieldString,
	"created":               FieldTime,
	"updated":               FieldTime,
	"defaultEstimate":       FieldFloat,
	"dueDate":               FieldDate,
	"estimationField":       FieldString,
	"finishedOn":            FieldTime,
	"homePageContent":       FieldText,
	"isTemplate":            FieldBool,
	"location":              FieldString,
	"parent":                FieldStruct,
	"previousTimeSpent":     FieldString,
	"prioritizationField":   FieldString,
	"projectURI":            FieldRef,
	"records":               FieldList,
	"sortOrder":             FieldInt,
	"startDate":             FieldDate,
	"startedOn":             FieldTime,
	"status":                FieldEnum,
	"templateURI":           FieldRef,
	"useReportFromTemplate": FieldBool,
}

var userSchema = Schema{
	"id":                    FieldString,
	"name":                  FieldString,
	"description":           FieldText,
	"disabledNotifications": FieldBool,
	"email":                 FieldString,
	"homePageContent":       FieldText,
	"initials":              FieldString,
}

var testRunSchema = Schema{
	"id":                    FieldString,
	"title":                 FieldString,
	"type":                  FieldEnum,
	"status":                FieldEnum,
	"comments":              FieldList,
	"attachments":           FieldList,
	"records":               FieldList,
	"authorURI":             FieldRef,
	"created":               FieldTime,
	"updated":               FieldTime,
	"document":              FieldStruct,
	"finishedOn":            FieldTime,
	"groupId":               FieldString,
	"idPrefix":              FieldString,
	"isTemplate":            FieldBool,
	"keepInHistory":         FieldBool,
	"location":              FieldString,
	"projectURI":            FieldRef,
	"query":                 FieldString,
	"selectTestCasesBy":     FieldEnum,
	"summaryDefectURI":      FieldRef,
	"templateURI":           FieldRef,
	"useReportFromTemplate": FieldBool,
}

var projectSchema = Schema{
	"id":                  FieldString,
	"name":                FieldString,
	"description":         FieldText,
	"active":              FieldBool,
	"start":               FieldTime,
	"finish":              FieldTime,
	"location":            FieldString,
	"trackerPrefix":       FieldString,
	"lead":                FieldStruct,
	"lockWorkRecordsDate": FieldTime,
}

var documentSchema = Schema{
	"id":                FieldString,
	"moduleFolder":      FieldString,
	"moduleName":        FieldString,
	"title":             FieldString,
	"type":              FieldEnum,
	"status":            FieldEnum,
	"homePageContent":   FieldText,
	"created":           FieldTime,
	"updated":           FieldTime,
	"authorURI":         FieldRef,
	"project":           FieldStruct,
	"allowedWITypes":    FieldList,
	"autoSuspect":       FieldBool,
	"structureLinkRole": FieldEnum,
	"location":          FieldString,
}

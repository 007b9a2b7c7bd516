package memory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/almforge/go-polarion/pkg/core"
)

const uriPrefix = "subterra:data-service:objects:/default/"

const defaultAuthor = "admin"

type link struct {
	from, to, role string
}

type hyperlink struct {
	url, role string
}

type approval struct {
	user, status string
}

type comment struct {
	uri      string
	id       string
	parentID string
	title    string
	body     core.Text
	author   string
	created  time.Time
}

type attachment struct {
	id       string
	fileName string
	title    string
	author   string
	url      string
	data     []byte
	updated  time.Time
}

// Store holds every record and relationship. One mutex guards it all;
// the volumes tests put through it never warrant anything finer.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq int

	base  map[string]core.Fields
	kinds map[string]core.Kind
	index map[core.Kind]map[string]string

	links             []link
	hyperlinks        map[string][]hyperlink
	assignees         map[string][]string
	approvals         map[string][]approval
	comments          map[string][]comment
	itemAttachments   map[string][]attachment
	planItems         map[string][]string
	runRecords        map[string][]core.Fields
	runAttachments    map[string][]attachment
	recordAttachments map[string][]attachment
	stepAttachments   map[string][]attachment
	moduleItems       map[string][]string
	projectUsers      map[string][]string

	required    map[string][]string
	customKeys  map[string][]string
	enums       map[string][]string
	actions     map[string][]core.WorkflowAction
	transitions map[int]string
	testSteps   map[string]*core.TestStepTable

	downloads map[string][]byte
	calls     map[string]int
	failures  map[string]int
}

// NewStore returns an empty store. Seed it with the Add and Set
// methods before handing its service views to the code under test.
func NewStore() *Store {
	return &Store{
		now:               time.Now,
		base:              make(map[string]core.Fields),
		kinds:             make(map[string]core.Kind),
		index:             make(map[core.Kind]map[string]string),
		hyperlinks:        make(map[string][]hyperlink),
		assignees:         make(map[string][]string),
		approvals:         make(map[string][]approval),
		comments:          make(map[string][]comment),
		itemAttachments:   make(map[string][]attachment),
		planItems:         make(map[string][]string),
		runRecords:        make(map[string][]core.Fields),
		runAttachments:    make(map[string][]attachment),
		recordAttachments: make(map[string][]attachment),
		stepAttachments:   make(map[string][]attachment),
		moduleItems:       make(map[string][]string),
		projectUsers:      make(map[string][]string),
		required:          make(map[string][]string),
		customKeys:        make(map[string][]string),
		enums:             make(map[string][]string),
		actions:           make(map[string][]core.WorkflowAction),
		transitions:       make(map[int]string),
		testSteps:         make(map[string]*core.TestStepTable),
		downloads:         make(map[string][]byte),
		calls:             make(map[string]int),
		failures:          make(map[string]int),
	}
}

// SetClock replaces the timestamp source, letting tests pin the times
// the store stamps onto created and updated records.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Calls reports how often the named service method ran, e.g.
// "WorkItems.Update".
func (s *Store) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// ResetCalls zeroes the call counters, typically after seeding.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// count must run with the lock held.
func (s *Store) count(name string) {
	s.calls[name]++
}

// FailNext arranges for the next call to the named record method to
// return an injected fault, e.g. "WorkItems.Update". Faults queue:
// calling FailNext twice fails the next two calls. Injection covers
// the fetch, create, update, delete and execute methods; the counter
// still ticks for a failed call.
func (s *Store) FailNext(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name]++
}

// failNext must run with the lock held.
func (s *Store) failNext(name string) error {
	if s.failures[name] > 0 {
		s.failures[name]--
		return fmt.Errorf("%s: injected fault", name)
	}
	return nil
}

func mintURI(kind core.Kind, projectID, id string) string {
	switch kind {
	case core.KindProject:
		return uriPrefix + id + "${Project}" + id
	case core.KindUser:
		return uriPrefix + "${User}" + id
	case core.KindWorkItem:
		return uriPrefix + projectID + "${WorkItem}" + id
	case core.KindPlan:
		return uriPrefix + projectID + "${Plan}" + id
	case core.KindTestRun:
		return uriPrefix + projectID + "${TestRun}" + id
	case core.KindDocument:
		return uriPrefix + projectID + "${Module}" + id
	default:
		return uriPrefix + projectID + "${" + string(kind) + "}" + id
	}
}

// scopeKey addresses a record within its kind. Projects and users are
// global; everything else lives inside a project.
func scopeKey(kind core.Kind, scope, id string) string {
	switch kind {
	case core.KindProject, core.KindUser:
		return id
	default:
		return scope + "/" + id
	}
}

// put must run with the lock held.
func (s *Store) put(kind core.Kind, projectID, id string, fields core.Fields) string {
	uri := mintURI(kind, projectID, id)
	f := fields.Clone()
	if f == nil {
		f = make(core.Fields)
	}
	f["id"] = id
	s.base[uri] = f
	s.kinds[uri] = kind
	if s.index[kind] == nil {
		s.index[kind] = make(map[string]string)
	}
	s.index[kind][scopeKey(kind, projectID, id)] = uri
	return uri
}

// lookup must run with the lock held.
func (s *Store) lookup(kind core.Kind, scope, id string) (string, bool) {
	uri, ok := s.index[kind][scopeKey(kind, scope, id)]
	return uri, ok
}

// AddProject seeds a project and returns its URI.
func (s *Store) AddProject(id string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindProject, "", id, fields)
}

// AddUser seeds a directory user and returns its URI.
func (s *Store) AddUser(id string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindUser, "", id, fields)
}

// AddProjectUser places an already seeded user on a project's roster.
func (s *Store) AddProjectUser(projectID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectUsers[projectID] = append(s.projectUsers[projectID], userID)
}

// AddWorkItem seeds a work item with a caller-chosen id and returns
// its URI. Items created through the service mint their own ids.
func (s *Store) AddWorkItem(projectID, id string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindWorkItem, projectID, id, fields)
}

// AddPlan seeds a plan. Seed one with "isTemplate" true to serve as a
// CreatePlan template.
func (s *Store) AddPlan(projectID, id string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindPlan, projectID, id, fields)
}

// AddTestRun seeds a test run. Seed one with "isTemplate" true to
// serve as a CreateTestRun template.
func (s *Store) AddTestRun(projectID, id string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindTestRun, projectID, id, fields)
}

// AddDocument seeds a LiveDoc module addressed by its space-qualified
// location, e.g. "Testing/Test Specification".
func (s *Store) AddDocument(projectID, location string, fields core.Fields) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(core.KindDocument, projectID, location, fields)
}

// SetRequiredFields declares which fields a create of the given work
// item type must carry.
func (s *Store) SetRequiredFields(typeName string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.required[typeName] = names
}

// SetAllowedCustomKeys declares the custom field allow-list for a work
// item type.
func (s *Store) SetAllowedCustomKeys(typeName string, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customKeys[typeName] = keys
}

// SetEnumOptions declares the options of one enumeration id.
func (s *Store) SetEnumOptions(enumID string, options ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enums[enumID] = options
}

// SetActions declares the workflow actions offered to items of a type,
// and which status each action id lands the item in when performed.
func (s *Store) SetActions(typeName string, actions []core.WorkflowAction, results map[int]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[typeName] = actions
	for id, status := range results {
		s.transitions[id] = status
	}
}

// SetTestSteps declares the test step table of a test case work item.
func (s *Store) SetTestSteps(itemURI string, table core.TestStepTable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testSteps[itemURI] = &table
}

// snapshot must run with the lock held. Missing records come back as
// unresolvable stubs, matching what the live service serves.
func (s *Store) snapshot(uri string) core.Record {
	base, ok := s.base[uri]
	if !ok {
		return core.Record{URI: uri, Unresolvable: true}
	}
	f := base.Clone()
	switch s.kinds[uri] {
	case core.KindWorkItem:
		s.decorateWorkItem(uri, f)
	case core.KindPlan:
		s.decoratePlan(uri, f)
	case core.KindTestRun:
		s.decorateTestRun(uri, f)
	}
	return core.NewRecord(uri, f)
}

// userFields must run with the lock held. Unknown users still embed as
// a bare reference so rosters never lose entries.
func (s *Store) userFields(id string) core.Fields {
	uri := mintURI(core.KindUser, "", id)
	f := core.Fields{"uri": uri, "id": id}
	if base, ok := s.base[uri]; ok {
		if name, ok := base["name"].(string); ok {
			f["name"] = name
		}
	}
	return f
}

// projectFields must run with the lock held.
func (s *Store) projectFields(id string) core.Fields {
	uri := mintURI(core.KindProject, "", id)
	f := core.Fields{"uri": uri, "id": id}
	if base, ok := s.base[uri]; ok {
		if name, ok := base["name"].(string); ok {
			f["name"] = name
		}
	}
	return f
}

func (s *Store) decorateWorkItem(uri string, f core.Fields) {
	var direct, derived []any
	for _, l := range s.links {
		if l.from == uri {
			direct = append(direct, core.Fields{"workItemURI": l.to, "role": core.Enum{ID: l.role}})
		}
		if l.to == uri {
			derived = append(derived, core.Fields{"workItemURI": l.from, "role": core.Enum{ID: l.role}})
		}
	}
	if direct != nil {
		f["linkedWorkItems"] = direct
	}
	if derived != nil {
		f["linkedWorkItemsDerived"] = derived
	}
	if links := s.hyperlinks[uri]; len(links) > 0 {
		var out []any
		for _, h := range links {
			out = append(out, core.Fields{"uri": h.url, "role": core.Enum{ID: h.role}})
		}
		f["hyperlinks"] = out
	}
	if ids := s.assignees[uri]; len(ids) > 0 {
		var out []any
		for _, id := range ids {
			out = append(out, s.userFields(id))
		}
		f["assignee"] = out
	}
	if apps := s.approvals[uri]; len(apps) > 0 {
		var out []any
		for _, a := range apps {
			out = append(out, core.Fields{"user": s.userFields(a.user), "status": core.Enum{ID: a.status}})
		}
		f["approvals"] = out
	}
	if cs := s.comments[uri]; len(cs) > 0 {
		f["comments"] = s.commentEntries(uri, cs)
	}
	if atts := s.itemAttachments[uri]; len(atts) > 0 {
		f["attachments"] = attachmentEntries(atts, s.userFields)
	}
	var planned []any
	for planURI, items := range s.planItems {
		for _, item := range items {
			if item != uri {
				continue
			}
			entry := core.Fields{"uri": planURI}
			if base, ok := s.base[planURI]; ok {
				entry["id"] = base["id"]
				entry["name"] = base["name"]
			}
			planned = append(planned, entry)
		}
	}
	if planned != nil {
		sort.Slice(planned, func(i, j int) bool {
			return planned[i].(core.Fields)["uri"].(string) < planned[j].(core.Fields)["uri"].(string)
		})
		f["plannedIn"] = planned
	}
}

func (s *Store) decoratePlan(uri string, f core.Fields) {
	items := s.planItems[uri]
	if len(items) == 0 {
		return
	}
	var records []any
	for _, itemURI := range items {
		embedded := s.snapshot(itemURI).Flatten()
		embedded["uri"] = itemURI
		records = append(records, core.Fields{"item": embedded})
	}
	f["records"] = records
}

func (s *Store) decorateTestRun(uri string, f core.Fields) {
	if recs := s.runRecords[uri]; len(recs) > 0 {
		var out []any
		for _, r := range recs {
			out = append(out, r.Clone())
		}
		f["records"] = out
	}
	if atts := s.runAttachments[uri]; len(atts) > 0 {
		f["attachments"] = attachmentEntries(atts, s.userFields)
	}
	if cs := s.comments[uri]; len(cs) > 0 {
		f["comments"] = s.commentEntries(uri, cs)
	}
}

func (s *Store) commentEntries(uri string, cs []comment) []any {
	var out []any
	for _, c := range cs {
		entry := core.Fields{
			"uri":     c.uri,
			"id":      c.id,
			"text":    c.body,
			"author":  s.userFields(c.author),
			"created": c.created,
		}
		if c.title != "" {
			entry["title"] = c.title
		} else {
			entry["title"] = nil
		}
		if c.parentID != "" {
			entry["parentCommentURI"] = core.Ref{URI: uri + "${Comment}" + c.parentID}
		}
		out = append(out, entry)
	}
	return out
}

func attachmentEntries(atts []attachment, user func(string) core.Fields) []any {
	var out []any
	for _, a := range atts {
		out = append(out, core.Fields{
			"id":       a.id,
			"fileName": a.fileName,
			"title":    a.title,
			"author":   user(a.author),
			"updated":  a.updated,
			"url":      a.url,
		})
	}
	return out
}

// newAttachment must run with the lock held. Every attachment gets a
// download URL served by DownloadAttachment.
func (s *Store) newAttachment(fileName, title string, data []byte) attachment {
	id := uuid.NewString()
	url := "https://memory.invalid/attachment/" + id
	s.downloads[url] = append([]byte(nil), data...)
	return attachment{
		id:       id,
		fileName: fileName,
		title:    title,
		author:   defaultAuthor,
		url:      url,
		data:     append([]byte(nil), data...),
		updated:  s.now(),
	}
}

// applyPatch must run with the lock held. A nil value clears the
// field; the update stamp always moves, mirroring the server-side
// bookkeeping entities observe through their post-save reload.
func (s *Store) applyPatch(uri string, patch core.Fields) error {
	base, ok := s.base[uri]
	if !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	for name, value := range patch.Clone() {
		if name == "uri" {
			continue
		}
		if value == nil {
			delete(base, name)
			continue
		}
		base[name] = value
	}
	base["updated"] = s.now()
	return nil
}

// search must run with the lock held.
func (s *Store) search(kind core.Kind, query, sortBy string, limit int) []core.Record {
	var hits []core.Record
	for uri, k := range s.kinds {
		if k != kind {
			continue
		}
		rec := s.snapshot(uri)
		if matchQuery(rec.Flatten(), query) {
			hits = append(hits, rec)
		}
	}
	key := sortField(sortBy)
	sort.SliceStable(hits, func(i, j int) bool {
		return lessRecords(hits[i], hits[j], key)
	})
	if limit >= 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// matchQuery evaluates a small slice of the query syntax the live
// service accepts: whitespace-separated clauses are ANDed, a clause is
// either "path:value" with dotted field paths or a bare term matched
// against the id and title.
func matchQuery(f core.Fields, query string) bool {
	for _, clause := range strings.Fields(query) {
		if !matchClause(f, clause) {
			return false
		}
	}
	return true
}

func matchClause(f core.Fields, clause string) bool {
	path, want, ok := strings.Cut(clause, ":")
	if !ok {
		if id, _ := f["id"].(string); id == clause {
			return true
		}
		title, _ := f["title"].(string)
		return strings.Contains(title, clause)
	}
	want = strings.Trim(want, "()\"")
	return valueMatches(lookupPath(f, strings.Split(path, ".")), want)
}

func lookupPath(f core.Fields, segments []string) any {
	var current any = f
	for _, seg := range segments {
		fields, ok := current.(core.Fields)
		if !ok {
			return nil
		}
		current = fields[seg]
	}
	return current
}

func valueMatches(v any, want string) bool {
	switch tv := v.(type) {
	case string:
		return tv == want
	case core.Enum:
		return tv.ID == want
	case core.Ref:
		return tv.URI == want || strings.HasSuffix(tv.URI, "}"+want)
	case bool:
		return strconv.FormatBool(tv) == want
	case int:
		return strconv.Itoa(tv) == want
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64) == want
	case core.Fields:
		return valueMatches(tv["id"], want)
	case []any:
		for _, member := range tv {
			if valueMatches(member, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// sortField maps a service sort key like "Created" onto the record
// field it reads.
func sortField(key string) string {
	if key == "" {
		return "created"
	}
	return strings.ToLower(key[:1]) + key[1:]
}

func lessRecords(a, b core.Record, key string) bool {
	av := a.Flatten()[key]
	bv := b.Flatten()[key]
	switch atv := av.(type) {
	case time.Time:
		if btv, ok := bv.(time.Time); ok {
			return atv.Before(btv)
		}
	case string:
		if btv, ok := bv.(string); ok {
			return atv < btv
		}
	case int:
		if btv, ok := bv.(int); ok {
			return atv < btv
		}
	case float64:
		if btv, ok := bv.(float64); ok {
			return atv < btv
		}
	}
	return a.URI < b.URI
}

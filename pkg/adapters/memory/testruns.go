package memory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/almforge/go-polarion/pkg/core"
)

// TestRuns serves the test management surface from the store.
type TestRuns struct {
	store *Store
}

// TestRuns returns the test management view.
func (s *Store) TestRuns() *TestRuns { return &TestRuns{store: s} }

var _ core.TestRunService = (*TestRuns)(nil)

func (t *TestRuns) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.FetchByID")
	if err := s.failNext("TestRuns.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindTestRun, scope, id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (t *TestRuns) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.FetchByURI")
	if err := s.failNext("TestRuns.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

func (t *TestRuns) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("test runs are created with CreateTestRun")
}

// CreateTestRun copies the template run's configuration and records
// into a fresh run.
func (t *TestRuns) CreateTestRun(ctx context.Context, projectID, id, title, templateID string) (string, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.CreateTestRun")
	if err := s.failNext("TestRuns.CreateTestRun"); err != nil {
		return "", err
	}
	templateURI, ok := s.lookup(core.KindTestRun, projectID, templateID)
	if !ok {
		return "", fmt.Errorf("no test run template %s in %s", templateID, projectID)
	}
	f := s.base[templateURI].Clone()
	delete(f, "isTemplate")
	f["templateURI"] = core.Ref{URI: templateURI}
	if title != "" {
		f["title"] = title
	}
	now := s.now()
	f["created"] = now
	f["updated"] = now
	uri := s.put(core.KindTestRun, projectID, id, f)
	for _, record := range s.runRecords[templateURI] {
		s.runRecords[uri] = append(s.runRecords[uri], record.Clone())
	}
	return uri, nil
}

func (t *TestRuns) Update(ctx context.Context, uri string, patch core.Fields) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.Update")
	if err := s.failNext("TestRuns.Update"); err != nil {
		return err
	}
	return s.applyPatch(uri, patch)
}

func (t *TestRuns) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("test runs cannot be deleted over the api")
}

func (t *TestRuns) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.Search")
	return s.search(core.KindTestRun, query, sort, limit), nil
}

// ExecuteTest updates the first record whose test case matches the
// handed record, the same first-occurrence rule callers rely on when
// a run references a test case twice.
func (t *TestRuns) ExecuteTest(ctx context.Context, testRunURI string, record core.Fields) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.ExecuteTest")
	if err := s.failNext("TestRuns.ExecuteTest"); err != nil {
		return err
	}
	if _, ok := s.base[testRunURI]; !ok {
		return fmt.Errorf("no test run at %s", testRunURI)
	}
	wanted, _ := record["testCaseURI"].(string)
	for i, existing := range s.runRecords[testRunURI] {
		if existing["testCaseURI"] != wanted {
			continue
		}
		merged := existing.Clone()
		for name, value := range record.Clone() {
			merged[name] = value
		}
		s.runRecords[testRunURI][i] = merged
		s.base[testRunURI]["updated"] = s.now()
		return nil
	}
	return fmt.Errorf("no test record for %s in %s", wanted, testRunURI)
}

func (t *TestRuns) AddRecord(ctx context.Context, testRunURI string, record core.Fields) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.AddRecord")
	if _, ok := s.base[testRunURI]; !ok {
		return fmt.Errorf("no test run at %s", testRunURI)
	}
	s.runRecords[testRunURI] = append(s.runRecords[testRunURI], record.Clone())
	s.base[testRunURI]["updated"] = s.now()
	return nil
}

func recordKey(testRunURI string, index int) string {
	return testRunURI + "\x00" + strconv.Itoa(index)
}

func stepKey(testRunURI string, index, stepIndex int) string {
	return recordKey(testRunURI, index) + "\x00" + strconv.Itoa(stepIndex)
}

func describeAttachment(a attachment) core.AttachmentInfo {
	return core.AttachmentInfo{
		FileName: a.fileName,
		Title:    a.title,
		URL:      a.url,
		AuthorID: a.author,
	}
}

func findAttachment(atts []attachment, fileName string) (attachment, bool) {
	for _, a := range atts {
		if a.fileName == fileName {
			return a, true
		}
	}
	return attachment{}, false
}

func removeAttachment(atts []attachment, fileName string) []attachment {
	kept := atts[:0]
	for _, a := range atts {
		if a.fileName != fileName {
			kept = append(kept, a)
		}
	}
	return kept
}

func (t *TestRuns) RunAttachment(ctx context.Context, testRunURI, fileName string) (core.AttachmentInfo, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.RunAttachment")
	a, ok := findAttachment(s.runAttachments[testRunURI], fileName)
	if !ok {
		return core.AttachmentInfo{}, fmt.Errorf("no attachment %s on %s", fileName, testRunURI)
	}
	return describeAttachment(a), nil
}

func (t *TestRuns) AddRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.AddRunAttachment")
	if _, ok := s.base[testRunURI]; !ok {
		return fmt.Errorf("no test run at %s", testRunURI)
	}
	s.runAttachments[testRunURI] = append(s.runAttachments[testRunURI], s.newAttachment(fileName, title, data))
	return nil
}

func (t *TestRuns) UpdateRunAttachment(ctx context.Context, testRunURI, fileName, title string, data []byte) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.UpdateRunAttachment")
	for i, a := range s.runAttachments[testRunURI] {
		if a.fileName != fileName {
			continue
		}
		a.title = title
		a.data = append([]byte(nil), data...)
		a.updated = s.now()
		s.downloads[a.url] = append([]byte(nil), data...)
		s.runAttachments[testRunURI][i] = a
		return nil
	}
	return fmt.Errorf("no attachment %s on %s", fileName, testRunURI)
}

func (t *TestRuns) DeleteRunAttachment(ctx context.Context, testRunURI, fileName string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.DeleteRunAttachment")
	s.runAttachments[testRunURI] = removeAttachment(s.runAttachments[testRunURI], fileName)
	return nil
}

func (t *TestRuns) RecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) (core.AttachmentInfo, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.RecordAttachment")
	a, ok := findAttachment(s.recordAttachments[recordKey(testRunURI, index)], fileName)
	if !ok {
		return core.AttachmentInfo{}, fmt.Errorf("no attachment %s on record %d of %s", fileName, index, testRunURI)
	}
	return describeAttachment(a), nil
}

func (t *TestRuns) AddRecordAttachment(ctx context.Context, testRunURI string, index int, fileName, title string, data []byte) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.AddRecordAttachment")
	if index < 0 || index >= len(s.runRecords[testRunURI]) {
		return fmt.Errorf("no test record %d in %s", index, testRunURI)
	}
	key := recordKey(testRunURI, index)
	s.recordAttachments[key] = append(s.recordAttachments[key], s.newAttachment(fileName, title, data))
	return nil
}

func (t *TestRuns) DeleteRecordAttachment(ctx context.Context, testRunURI string, index int, fileName string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.DeleteRecordAttachment")
	key := recordKey(testRunURI, index)
	s.recordAttachments[key] = removeAttachment(s.recordAttachments[key], fileName)
	return nil
}

func (t *TestRuns) StepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) (core.AttachmentInfo, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.StepAttachment")
	a, ok := findAttachment(s.stepAttachments[stepKey(testRunURI, index, stepIndex)], fileName)
	if !ok {
		return core.AttachmentInfo{}, fmt.Errorf("no attachment %s on step %d of record %d of %s", fileName, stepIndex, index, testRunURI)
	}
	return describeAttachment(a), nil
}

func (t *TestRuns) AddStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName, title string, data []byte) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.AddStepAttachment")
	if index < 0 || index >= len(s.runRecords[testRunURI]) {
		return fmt.Errorf("no test record %d in %s", index, testRunURI)
	}
	key := stepKey(testRunURI, index, stepIndex)
	s.stepAttachments[key] = append(s.stepAttachments[key], s.newAttachment(fileName, title, data))
	return nil
}

func (t *TestRuns) DeleteStepAttachment(ctx context.Context, testRunURI string, index, stepIndex int, fileName string) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("TestRuns.DeleteStepAttachment")
	key := stepKey(testRunURI, index, stepIndex)
	s.stepAttachments[key] = removeAttachment(s.stepAttachments[key], fileName)
	return nil
}

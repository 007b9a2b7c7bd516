package soap

import (
	"context"
	"strings"
	"testing"

	"github.com/almforge/go-polarion/pkg/core"
)

func TestSearchDecodesEveryHit(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["queryWorkItems"] = `<queryWorkItemsResponse>
	 <queryWorkItemsReturn>
	  <WorkItem uri="subterra:data-service:objects:/default/Proj${WorkItem}PROJ-1"><id>PROJ-1</id><title>one</title></WorkItem>
	  <WorkItem uri="subterra:data-service:objects:/default/Proj${WorkItem}PROJ-2"><id>PROJ-2</id><title>two</title></WorkItem>
	 </queryWorkItemsReturn>
	</queryWorkItemsResponse>`

	hits, err := c.WorkItems().Search(context.Background(), "title:one", "", -1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if got := hits[1].Flatten()["id"]; got != "PROJ-2" {
		t.Errorf("second hit id = %v", got)
	}
	body := f.lastBody("queryWorkItems")
	if !strings.Contains(body, "<query>title:one</query>") || !strings.Contains(body, "<sort>Created</sort>") {
		t.Errorf("query request wrong:\n%s", body)
	}
}

func TestTestStepsDecode(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["getTestSteps"] = `<getTestStepsResponse>
	 <getTestStepsReturn>
	  <keys><EnumOptionId><id>step</id></EnumOptionId><EnumOptionId><id>expectedResult</id></EnumOptionId></keys>
	  <steps>
	   <TestStep><values>
	    <Text><type>text/html</type><content>open the app</content><contentLossy>false</contentLossy></Text>
	    <Text><type>text/html</type><content>it opens</content><contentLossy>false</contentLossy></Text>
	   </values></TestStep>
	   <TestStep><values>
	    <Text><type>text/html</type><content>close it</content><contentLossy>false</contentLossy></Text>
	    <Text><type>text/html</type><content>it closes</content><contentLossy>false</contentLossy></Text>
	   </values></TestStep>
	  </steps>
	 </getTestStepsReturn>
	</getTestStepsResponse>`

	table, err := c.WorkItems().TestSteps(context.Background(), "subterra:testcase-uri")
	if err != nil {
		t.Fatalf("TestSteps() error = %v", err)
	}
	if table == nil {
		t.Fatal("TestSteps() = nil for an item with steps")
	}
	if len(table.Keys) != 2 || table.Keys[0] != "step" || table.Keys[1] != "expectedResult" {
		t.Errorf("keys = %v", table.Keys)
	}
	if len(table.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(table.Steps))
	}
	if got := table.Steps[1][0].Content; got != "close it" {
		t.Errorf("second step = %q", got)
	}
}

func TestTestStepsAbsent(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["getTestSteps"] = `<getTestStepsResponse>
	 <getTestStepsReturn xsi:nil="true" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"/>
	</getTestStepsResponse>`

	table, err := c.WorkItems().TestSteps(context.Background(), "subterra:plain-uri")
	if err != nil {
		t.Fatalf("TestSteps() error = %v", err)
	}
	if table != nil {
		t.Errorf("TestSteps() = %+v, want nil for an item without steps", table)
	}
}

func TestCreatePlanSendsNilParent(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["createPlan"] = `<createPlanResponse>
	 <createPlanReturn>subterra:data-service:objects:/default/Proj${Plan}sprint-1</createPlanReturn>
	</createPlanResponse>`

	uri, err := c.Plans().CreatePlan(context.Background(), "Proj", "Sprint 1", "sprint-1", "", "iteration")
	if err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}
	if !strings.HasSuffix(uri, "sprint-1") {
		t.Errorf("uri = %q", uri)
	}
	body := f.lastBody("createPlan")
	if !strings.Contains(body, `<parentId xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:nil="true">`) {
		t.Errorf("parent not sent as nil:\n%s", body)
	}
	if !strings.Contains(body, "<templateId>iteration</templateId>") {
		t.Errorf("template missing:\n%s", body)
	}
}

func TestPlanItemMutations(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)

	err := c.Plans().AddItems(context.Background(), "subterra:plan-uri", []string{"subterra:item-1", "subterra:item-2"})
	if err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	body := f.lastBody("addPlanItems")
	for _, want := range []string{
		"<planUri>subterra:plan-uri</planUri>",
		"<SubterraURI>subterra:item-1</SubterraURI>",
		"<SubterraURI>subterra:item-2</SubterraURI>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("addPlanItems request missing %q:\n%s", want, body)
		}
	}

	if err := c.Plans().RemoveAllowedType(context.Background(), "subterra:plan-uri", "task"); err != nil {
		t.Fatalf("RemoveAllowedType() error = %v", err)
	}
	if body := f.lastBody("removePlanAllowedType"); !strings.Contains(body, "<type><id>task</id></type>") {
		t.Errorf("removePlanAllowedType request wrong:\n%s", body)
	}
}

func TestCreateTestRunPicksOperation(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["createTestRun"] = `<r><createTestRunReturn>subterra:run-1</createTestRunReturn></r>`
	f.respond["createTestRunWithTitle"] = `<r><createTestRunWithTitleReturn>subterra:run-2</createTestRunWithTitleReturn></r>`

	uri, err := c.TestRuns().CreateTestRun(context.Background(), "Proj", "unit-1", "", "unittest-01")
	if err != nil {
		t.Fatalf("CreateTestRun() error = %v", err)
	}
	if uri != "subterra:run-1" || f.calls("createTestRun") != 1 {
		t.Errorf("untitled create used the wrong operation (uri %q)", uri)
	}

	uri, err = c.TestRuns().CreateTestRun(context.Background(), "Proj", "unit-2", "New unit test run", "unittest-01")
	if err != nil {
		t.Fatalf("CreateTestRun() with title error = %v", err)
	}
	if uri != "subterra:run-2" || f.calls("createTestRunWithTitle") != 1 {
		t.Errorf("titled create used the wrong operation (uri %q)", uri)
	}
	if body := f.lastBody("createTestRunWithTitle"); !strings.Contains(body, "<title>New unit test run</title>") {
		t.Errorf("title missing:\n%s", body)
	}
}

func TestExecuteTestSendsRecord(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)

	record := core.Fields{
		"testCaseURI": core.Ref{URI: "subterra:case-uri"},
		"result":      core.Enum{ID: "passed"},
		"comment":     core.HTML("all good"),
		"executed":    mustTime(t, "2026-08-25T10:00:00.000Z"),
		"duration":    1.5,
		"testStepResults": []any{
			core.Fields{"result": core.Enum{ID: "passed"}},
			core.Fields{"result": core.Enum{ID: "blocked"}, "comment": core.HTML("stuck")},
		},
	}
	if err := c.TestRuns().ExecuteTest(context.Background(), "subterra:run-uri", record); err != nil {
		t.Fatalf("ExecuteTest() error = %v", err)
	}

	body := f.lastBody("executeTest")
	for _, want := range []string{
		"<testRunURI>subterra:run-uri</testRunURI>",
		"<testCaseURI>subterra:case-uri</testCaseURI>",
		"<result><id>passed</id></result>",
		"<executed>2026-08-25T10:00:00.000Z</executed>",
		"<testStepResults><TestStepResult><result><id>passed</id></result></TestStepResult>",
		"<result><id>blocked</id></result>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("executeTest request missing %q:\n%s", want, body)
		}
	}
}

func TestRunAttachmentDescriptor(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["getTestRunAttachment"] = `<r>
	 <getTestRunAttachmentReturn>
	  <fileName>shot.png</fileName>
	  <title>Screen shot</title>
	  <url>https://polarion.invalid/repo/Proj/shot.png</url>
	  <author uri="subterra:user-uri"><id>jdoe</id></author>
	 </getTestRunAttachmentReturn>
	</r>`

	att, err := c.TestRuns().RunAttachment(context.Background(), "subterra:run-uri", "shot.png")
	if err != nil {
		t.Fatalf("RunAttachment() error = %v", err)
	}
	if att.FileName != "shot.png" || att.Title != "Screen shot" || att.AuthorID != "jdoe" {
		t.Errorf("attachment = %+v", att)
	}
	if att.URL != "https://polarion.invalid/repo/Proj/shot.png" {
		t.Errorf("url = %q", att.URL)
	}
}

func TestProjectFetchByURIRecoversID(t *testing.T) {
	f, srv := newFakeServer(t)
	c := connectedClient(t, f, srv)
	f.respond["getProject"] = `<r>
	 <getProjectReturn uri="subterra:data-service:objects:/default/Proj${Project}Proj">
	  <id>Proj</id><name>The project</name>
	 </getProjectReturn>
	</r>`

	rec, err := c.Projects().FetchByURI(context.Background(), "subterra:data-service:objects:/default/Proj${Project}Proj")
	if err != nil {
		t.Fatalf("FetchByURI() error = %v", err)
	}
	if got := rec.Flatten()["name"]; got != "The project" {
		t.Errorf("name = %v", got)
	}
	if body := f.lastBody("getProject"); !strings.Contains(body, "<projectId>Proj</projectId>") {
		t.Errorf("project id not recovered from uri:\n%s", body)
	}
}

func mustTime(t *testing.T, stamp string) any {
	t.Helper()
	v := parseDateTime(stamp)
	if v == nil {
		t.Fatalf("bad test stamp %q", stamp)
	}
	return v
}

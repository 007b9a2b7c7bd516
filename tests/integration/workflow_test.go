package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almforge/go-polarion/pkg/core"
)

// TestDefectTriageWorkflow walks one defect through a full triage
// session: creation, field edits, assignment, linking, a workflow
// transition, discussion and planning. Along the way it meters the
// traffic each stage costs.
func TestDefectTriageWorkflow(t *testing.T) {
	client, store := newEnv(t)
	project := openLibrary(t, client)
	ctx := context.Background()

	// 1. File the defect. Creation costs one Create plus the initial
	// load of the minted item.
	defect, err := project.CreateWorkItem(ctx, "defect", core.Fields{
		"title":    "Search drops diacritics",
		"severity": core.Enum{ID: "major"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Library-1", defect.ID())
	assert.Equal(t, "open", defect.Status())
	assert.Equal(t, 1, store.Calls("WorkItems.Create"))
	assert.Equal(t, 1, store.Calls("WorkItems.FetchByURI"))

	// 2. Edits stay local until Save, and Save sends only the touched
	// fields before reloading.
	store.ResetCalls()
	defect.Set("title", "Search drops combining diacritics")
	defect.Set("severity", core.Enum{ID: "critical"})
	assert.Equal(t, []string{"severity", "title"}, defect.Dirty())
	require.NoError(t, defect.Save(ctx))
	assert.Empty(t, defect.Dirty())
	assert.Equal(t, 1, store.Calls("WorkItems.Update"))
	assert.Equal(t, 1, store.Calls("WorkItems.FetchByURI"))

	// Saving again without edits must not touch the wire at all.
	require.NoError(t, defect.Save(ctx))
	assert.Equal(t, 1, store.Calls("WorkItems.Update"))

	// 3. Assign an owner and ask for an approval.
	jdoe, err := project.FindUser(ctx, "jdoe")
	require.NoError(t, err)
	require.NotNil(t, jdoe)
	require.NoError(t, defect.AddAssignee(ctx, jdoe, false))
	assignees, err := defect.Assignees()
	require.NoError(t, err)
	require.Len(t, assignees, 1)
	assert.Equal(t, "jdoe", assignees[0].ID())

	admin, err := project.FindUser(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, admin)
	require.NoError(t, defect.AddApprovee(ctx, admin, false))
	approvals, err := defect.Approvals()
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "admin", approvals[0].User.ID())

	// 4. Link the defect to the requirement it breaks. Both loaded
	// entities see the link immediately, without a manual reload.
	store.AddWorkItem("Library", "Library-100", core.Fields{
		"title": "Accent-insensitive search",
		"type":  core.Enum{ID: "requirement"},
	})
	requirement, err := project.WorkItem(ctx, "Library-100")
	require.NoError(t, err)
	require.NoError(t, defect.AddLinkedItem(ctx, requirement, "relates_to"))
	direct := defect.LinkedWorkItems()
	require.Len(t, direct, 1)
	assert.Equal(t, requirement.URI(), direct[0].URI)
	assert.Equal(t, "relates_to", direct[0].Role)
	derived := requirement.DerivedLinkedWorkItems()
	require.Len(t, derived, 1)
	assert.Equal(t, defect.URI(), derived[0].URI)

	// 5. The status gate rejects targets the workflow does not offer,
	// and a rejected move leaves the item clean.
	err = defect.SetStatus(ctx, "closed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open, inprogress")
	assert.Equal(t, "open", defect.Status())
	assert.Empty(t, defect.Dirty())

	// 6. A named workflow action goes through and comes back with the
	// server-assigned status.
	require.NoError(t, defect.PerformAction(ctx, "Start Progress"))
	assert.Equal(t, "inprogress", defect.Status())

	// 7. Discussion: a comment and a threaded reply.
	require.NoError(t, defect.AddComment(ctx, "Repro", "Fails for n-with-tilde."))
	comments := defect.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Repro", comments[0].Title)
	require.NoError(t, defect.AddReply(ctx, comments[0].URI, "Confirmed on 24.1."))
	comments = defect.Comments()
	require.Len(t, comments, 2)
	assert.Equal(t, comments[0].URI, comments[1].ParentURI)

	// 8. Plan the fix into the next sprint.
	store.AddPlan("Library", "iteration", core.Fields{
		"name":         "Iteration Template",
		"isTemplate":   true,
		"allowedTypes": []any{core.Enum{ID: "defect"}},
	})
	sprint, err := project.CreatePlan(ctx, "Sprint 9", "sprint-9", "", nil)
	require.NoError(t, err)
	require.NoError(t, sprint.AddItem(ctx, defect))
	planned, err := sprint.WorkItems(ctx)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, defect.ID(), planned[0].ID())
}

// TestSaveFailureKeepsEdits ensures a failed save neither loses the
// local edits nor leaves a stale snapshot behind: the item stays dirty
// and a later successful save still sends the change.
func TestSaveFailureKeepsEdits(t *testing.T) {
	client, store := newEnv(t)
	project := openLibrary(t, client)
	ctx := context.Background()
	store.AddWorkItem("Library", "Library-5", core.Fields{"title": "Flaky import"})

	item, err := project.WorkItem(ctx, "Library-5")
	require.NoError(t, err)

	item.Set("title", "Flaky import of MARC records")
	store.FailNext("WorkItems.Update")
	err = item.Save(ctx)
	require.Error(t, err)

	var remote *core.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, []string{"title"}, item.Dirty(), "failed save must keep the edit pending")

	require.NoError(t, item.Save(ctx))
	assert.Empty(t, item.Dirty())

	fresh, err := project.WorkItem(ctx, "Library-5")
	require.NoError(t, err)
	assert.Equal(t, "Flaky import of MARC records", fresh.Title())
}

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/almforge/go-polarion"
	"github.com/almforge/go-polarion/pkg/adapters/memory"
	"github.com/almforge/go-polarion/pkg/core"
)

// newEnv wires a client against a fresh in-process store seeded with a
// project, two users and a defect workflow. Call counters are zeroed
// after seeding so tests can meter exactly what their own operations
// cost.
func newEnv(t *testing.T) (*polarion.Client, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddProject("Library", core.Fields{"name": "Library"})
	store.AddUser("admin", core.Fields{"name": "Administrator", "email": "admin@example.invalid"})
	store.AddUser("jdoe", core.Fields{"name": "Jane Doe", "email": "jdoe@example.invalid"})
	store.AddProjectUser("Library", "admin")
	store.AddProjectUser("Library", "jdoe")

	store.SetRequiredFields("defect", "title", "severity")
	store.SetEnumOptions("status", "open", "inprogress")
	store.SetActions("defect", []core.WorkflowAction{
		{ID: 1, NativeID: "start", Name: "Start Progress"},
		{ID: 2, NativeID: "resolve", Name: "Resolve"},
	}, map[int]string{1: "inprogress", 2: "resolved"})

	client, err := polarion.NewClient(context.Background(), "", "", "", polarion.WithServices(polarion.Services{
		WorkItems: store.WorkItems(),
		Plans:     store.Plans(),
		TestRuns:  store.TestRuns(),
		Projects:  store.Projects(),
		Users:     store.Users(),
		Documents: store.Documents(),
		Downloads: store,
	}))
	require.NoError(t, err)
	store.ResetCalls()
	return client, store
}

// openLibrary loads the seeded project.
func openLibrary(t *testing.T, client *polarion.Client) *polarion.Project {
	t.Helper()
	project, err := client.Project(context.Background(), "Library")
	require.NoError(t, err)
	return project
}

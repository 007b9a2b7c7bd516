package polarion

import (
	"context"
	"errors"
	"testing"

	"github.com/almforge/go-polarion/pkg/adapters/memory"
	"github.com/almforge/go-polarion/pkg/core"
)

// newTestClient wires a client to a fresh in-process store seeded with
// one project and two users. Call counters are zeroed after seeding so
// tests can assert what their own operations cost.
func newTestClient(t *testing.T) (*Client, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddProject("Proj", core.Fields{"name": "Demo Project"})
	store.AddUser("admin", core.Fields{"name": "Administrator", "email": "admin@example.invalid"})
	store.AddUser("jdoe", core.Fields{"name": "Jane Doe", "email": "jdoe@example.invalid"})
	store.AddProjectUser("Proj", "admin")
	store.AddProjectUser("Proj", "jdoe")

	client, err := NewClient(context.Background(), "", "", "", WithServices(Services{
		WorkItems: store.WorkItems(),
		Plans:     store.Plans(),
		TestRuns:  store.TestRuns(),
		Projects:  store.Projects(),
		Users:     store.Users(),
		Documents: store.Documents(),
		Downloads: store,
	}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	store.ResetCalls()
	return client, store
}

func loadProject(t *testing.T, client *Client) *Project {
	t.Helper()
	project, err := client.Project(context.Background(), "Proj")
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	return project
}

func TestProjectLoad(t *testing.T) {
	client, _ := newTestClient(t)
	project := loadProject(t, client)

	if project.ID() != "Proj" {
		t.Errorf("ID() = %q, want Proj", project.ID())
	}
	if project.Name() != "Demo Project" {
		t.Errorf("Name() = %q, want Demo Project", project.Name())
	}
	if got := project.String(); got != "Demo Project (Proj)" {
		t.Errorf("String() = %q", got)
	}
}

func TestProjectLoadMissing(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Project(context.Background(), "Nope")
	var notFound *core.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Project() error = %v, want NotFoundError", err)
	}
	if notFound.Kind != core.KindProject {
		t.Errorf("Kind = %v, want project", notFound.Kind)
	}
}

func TestUserLoad(t *testing.T) {
	client, _ := newTestClient(t)

	user, err := client.User(context.Background(), "jdoe")
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if user.Name() != "Jane Doe" {
		t.Errorf("Name() = %q, want Jane Doe", user.Name())
	}
	if user.Email() != "jdoe@example.invalid" {
		t.Errorf("Email() = %q", user.Email())
	}
	if got := user.String(); got != "Jane Doe (jdoe)" {
		t.Errorf("String() = %q", got)
	}
}

func TestProjectUsers(t *testing.T) {
	client, _ := newTestClient(t)
	project := loadProject(t, client)
	ctx := context.Background()

	users, err := project.Users(ctx)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Users() returned %d users, want 2", len(users))
	}

	found, err := project.FindUser(ctx, "jdoe")
	if err != nil {
		t.Fatalf("FindUser() error = %v", err)
	}
	if found == nil || found.ID() != "jdoe" {
		t.Errorf("FindUser(jdoe) = %v", found)
	}

	missing, err := project.FindUser(ctx, "ghost")
	if err != nil {
		t.Fatalf("FindUser(ghost) error = %v", err)
	}
	if missing != nil {
		t.Errorf("FindUser(ghost) = %v, want nil", missing)
	}
}

func TestFromURIDispatch(t *testing.T) {
	client, store := newTestClient(t)
	project := loadProject(t, client)
	ctx := context.Background()
	itemURI := store.AddWorkItem("Proj", "Proj-1", core.Fields{"title": "Dispatch me"})

	got, err := client.FromURI(ctx, project, itemURI)
	if err != nil {
		t.Fatalf("FromURI() error = %v", err)
	}
	item, ok := got.(*WorkItem)
	if !ok {
		t.Fatalf("FromURI() returned %T, want *WorkItem", got)
	}
	if item.Title() != "Dispatch me" {
		t.Errorf("Title() = %q", item.Title())
	}
	if item.Project() != project {
		t.Error("item should carry the project it was dispatched with")
	}

	userURI := "subterra:data-service:objects:/default/${User}jdoe"
	got, err = client.FromURI(ctx, nil, userURI)
	if err != nil {
		t.Fatalf("FromURI(user) error = %v", err)
	}
	if _, ok := got.(*User); !ok {
		t.Fatalf("FromURI(user) returned %T, want *User", got)
	}
}

func TestFromURIUnknownKind(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.FromURI(context.Background(), nil, "subterra:data-service:objects:/default/Proj${Gadget}G-1")
	var unknown *core.UnknownKindError
	if !errors.As(err, &unknown) {
		t.Fatalf("FromURI() error = %v, want UnknownKindError", err)
	}
	if unknown.Token != "gadget" {
		t.Errorf("Token = %q, want gadget", unknown.Token)
	}
}

func TestFromURIRejectsGarbage(t *testing.T) {
	client, _ := newTestClient(t)

	if _, err := client.FromURI(context.Background(), nil, "https://example.invalid/not-a-uri"); err == nil {
		t.Fatal("FromURI() accepted a non-subterra uri")
	}
}

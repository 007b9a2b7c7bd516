package memory

import (
	"context"
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

// Projects serves the project directory from the store. Projects are
// read-only, like the live service.
type Projects struct {
	store *Store
}

// Projects returns the project directory view.
func (s *Store) Projects() *Projects { return &Projects{store: s} }

var _ core.ProjectService = (*Projects)(nil)

func (p *Projects) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Projects.FetchByID")
	if err := s.failNext("Projects.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindProject, "", id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (p *Projects) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Projects.FetchByURI")
	if err := s.failNext("Projects.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

func (p *Projects) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("projects cannot be created over the api")
}

func (p *Projects) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("projects are read-only over the api")
}

func (p *Projects) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("projects are read-only over the api")
}

func (p *Projects) Users(ctx context.Context, projectID string) ([]core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Projects.Users")
	var out []core.Record
	for _, userID := range s.projectUsers[projectID] {
		out = append(out, s.snapshot(mintURI(core.KindUser, "", userID)))
	}
	return out, nil
}

// Users serves the user directory from the store.
type Users struct {
	store *Store
}

// Users returns the user directory view.
func (s *Store) Users() *Users { return &Users{store: s} }

var _ core.UserService = (*Users)(nil)

func (u *Users) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Users.FetchByID")
	if err := s.failNext("Users.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindUser, "", id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (u *Users) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Users.FetchByURI")
	if err := s.failNext("Users.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

func (u *Users) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("users cannot be created over the api")
}

func (u *Users) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("users are read-only over the api")
}

func (u *Users) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("users are read-only over the api")
}

// Documents serves LiveDoc modules from the store.
type Documents struct {
	store *Store
}

// Documents returns the module view.
func (s *Store) Documents() *Documents { return &Documents{store: s} }

var _ core.DocumentService = (*Documents)(nil)

func (d *Documents) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Documents.FetchByID")
	if err := s.failNext("Documents.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindDocument, scope, id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (d *Documents) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Documents.FetchByURI")
	if err := s.failNext("Documents.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

func (d *Documents) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("documents cannot be created over the api")
}

func (d *Documents) Update(ctx context.Context, uri string, patch core.Fields) error {
	return fmt.Errorf("documents are read-only over the api")
}

func (d *Documents) Delete(ctx context.Context, uri string) error {
	return fmt.Errorf("documents are read-only over the api")
}

func (d *Documents) ItemURIs(ctx context.Context, moduleURI string) ([]string, error) {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Documents.ItemURIs")
	if _, ok := s.base[moduleURI]; !ok {
		return nil, fmt.Errorf("no document at %s", moduleURI)
	}
	return append([]string(nil), s.moduleItems[moduleURI]...), nil
}

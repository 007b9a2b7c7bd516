package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/almforge/go-polarion/pkg/core"
)

// Plans serves the planning surface from the store.
type Plans struct {
	store *Store
}

// Plans returns the planning view.
func (s *Store) Plans() *Plans { return &Plans{store: s} }

var _ core.PlanService = (*Plans)(nil)

func (p *Plans) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.FetchByID")
	if err := s.failNext("Plans.FetchByID"); err != nil {
		return core.Record{}, err
	}
	uri, ok := s.lookup(core.KindPlan, scope, id)
	if !ok {
		return core.Record{Unresolvable: true}, nil
	}
	return s.snapshot(uri), nil
}

func (p *Plans) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.FetchByURI")
	if err := s.failNext("Plans.FetchByURI"); err != nil {
		return core.Record{}, err
	}
	return s.snapshot(uri), nil
}

func (p *Plans) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("plans are created with CreatePlan")
}

// CreatePlan copies the template plan's configuration into a fresh
// plan, wiring the parent in when one is named.
func (p *Plans) CreatePlan(ctx context.Context, projectID, name, id, parentID, templateID string) (string, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.CreatePlan")
	if err := s.failNext("Plans.CreatePlan"); err != nil {
		return "", err
	}
	templateURI, ok := s.lookup(core.KindPlan, projectID, templateID)
	if !ok {
		return "", fmt.Errorf("no plan template %s in %s", templateID, projectID)
	}
	f := s.base[templateURI].Clone()
	delete(f, "isTemplate")
	f["name"] = name
	f["templateURI"] = core.Ref{URI: templateURI}
	now := s.now()
	f["created"] = now
	f["updated"] = now
	if parentID != "" {
		parentURI, ok := s.lookup(core.KindPlan, projectID, parentID)
		if !ok {
			return "", fmt.Errorf("no parent plan %s in %s", parentID, projectID)
		}
		f["parent"] = core.Fields{
			"uri":  parentURI,
			"id":   s.base[parentURI]["id"],
			"name": s.base[parentURI]["name"],
		}
	}
	return s.put(core.KindPlan, projectID, id, f), nil
}

func (p *Plans) Update(ctx context.Context, uri string, patch core.Fields) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.Update")
	if err := s.failNext("Plans.Update"); err != nil {
		return err
	}
	return s.applyPatch(uri, patch)
}

func (p *Plans) Delete(ctx context.Context, uri string) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.Delete")
	if err := s.failNext("Plans.Delete"); err != nil {
		return err
	}
	if _, ok := s.base[uri]; !ok {
		return fmt.Errorf("no record at %s", uri)
	}
	s.drop(uri)
	delete(s.planItems, uri)
	return nil
}

// AddItems places work items into the plan. The type gate belongs to
// the caller; the service accepts whatever it is handed, like the live
// one does.
func (p *Plans) AddItems(ctx context.Context, planURI string, itemURIs []string) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.AddItems")
	if _, ok := s.base[planURI]; !ok {
		return fmt.Errorf("no plan at %s", planURI)
	}
	for _, itemURI := range itemURIs {
		if _, ok := s.base[itemURI]; !ok {
			return fmt.Errorf("no record at %s", itemURI)
		}
		if !slices.Contains(s.planItems[planURI], itemURI) {
			s.planItems[planURI] = append(s.planItems[planURI], itemURI)
		}
	}
	s.base[planURI]["updated"] = s.now()
	return nil
}

func (p *Plans) RemoveItems(ctx context.Context, planURI string, itemURIs []string) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.RemoveItems")
	if _, ok := s.base[planURI]; !ok {
		return fmt.Errorf("no plan at %s", planURI)
	}
	for _, itemURI := range itemURIs {
		s.planItems[planURI] = removeString(s.planItems[planURI], itemURI)
	}
	s.base[planURI]["updated"] = s.now()
	return nil
}

func (p *Plans) AddAllowedType(ctx context.Context, planURI, typeName string) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.AddAllowedType")
	base, ok := s.base[planURI]
	if !ok {
		return fmt.Errorf("no plan at %s", planURI)
	}
	current, _ := base["allowedTypes"].([]any)
	for _, member := range current {
		if e, ok := member.(core.Enum); ok && e.ID == typeName {
			return nil
		}
	}
	base["allowedTypes"] = append(current, core.Enum{ID: typeName})
	base["updated"] = s.now()
	return nil
}

func (p *Plans) RemoveAllowedType(ctx context.Context, planURI, typeName string) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.RemoveAllowedType")
	base, ok := s.base[planURI]
	if !ok {
		return fmt.Errorf("no plan at %s", planURI)
	}
	current, _ := base["allowedTypes"].([]any)
	var kept []any
	for _, member := range current {
		if e, ok := member.(core.Enum); ok && e.ID == typeName {
			continue
		}
		kept = append(kept, member)
	}
	base["allowedTypes"] = kept
	base["updated"] = s.now()
	return nil
}

func (p *Plans) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Plans.Search")
	return s.search(core.KindPlan, query, sort, limit), nil
}

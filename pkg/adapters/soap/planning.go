package soap

import (
	"context"
	"fmt"
	"strings"

	"github.com/almforge/go-polarion/pkg/core"
)

// Plans accesses planning records.
type Plans struct {
	client *Client
}

// Plans returns the planning accessor.
func (c *Client) Plans() *Plans { return &Plans{client: c} }

var _ core.PlanService = (*Plans)(nil)

func (p *Plans) FetchByID(ctx context.Context, scope, id string) (core.Record, error) {
	resp, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "getPlanById",
		Args:    []element{stringArg("projectId", scope), stringArg("id", id)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindPlan), nil
}

func (p *Plans) FetchByURI(ctx context.Context, uri string) (core.Record, error) {
	resp, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "getPlanByUri",
		Args:    []element{stringArg("uri", uri)},
	})
	if err != nil {
		return core.Record{}, err
	}
	return returnedRecord(resp, core.KindPlan), nil
}

// Create is not served generically; plans are minted with CreatePlan,
// which the planning service requires a name and template for.
func (p *Plans) Create(ctx context.Context, scope, typeName string, initial core.Fields) (string, error) {
	return "", fmt.Errorf("plans are created with CreatePlan")
}

// CreatePlan mints a plan from a template and returns the new URI.
// The parent id is optional.
func (p *Plans) CreatePlan(ctx context.Context, projectID, name, id, parentID, templateID string) (string, error) {
	parentArg := nilArg("parentId")
	if parentID != "" {
		parentArg = stringArg("parentId", parentID)
	}
	resp, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "createPlan",
		Args: []element{
			stringArg("projectId", projectID), stringArg("name", name),
			stringArg("id", id), parentArg, stringArg("templateId", templateID),
		},
	})
	if err != nil {
		return "", err
	}
	ret := returnNode(resp)
	if ret == nil {
		return "", fmt.Errorf("createPlan returned no uri")
	}
	return strings.TrimSpace(ret.Text), nil
}

func (p *Plans) Update(ctx context.Context, uri string, patch core.Fields) error {
	content, err := entityElement("plan", uri, core.KindPlan, patch)
	if err != nil {
		return err
	}
	_, err = p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "updatePlan",
		Args:    []element{content},
	})
	return err
}

func (p *Plans) Delete(ctx context.Context, uri string) error {
	_, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "deletePlans",
		Args:    []element{structArg("planUris", stringArg("SubterraURI", uri))},
	})
	return err
}

// AddItems places work items into the plan.
func (p *Plans) AddItems(ctx context.Context, planURI string, itemURIs []string) error {
	return p.itemsCall(ctx, "addPlanItems", planURI, itemURIs)
}

// RemoveItems takes work items out of the plan.
func (p *Plans) RemoveItems(ctx context.Context, planURI string, itemURIs []string) error {
	return p.itemsCall(ctx, "removePlanItems", planURI, itemURIs)
}

func (p *Plans) itemsCall(ctx context.Context, name, planURI string, itemURIs []string) error {
	uris := element{name: "workItemUris"}
	for _, uri := range itemURIs {
		uris.children = append(uris.children, stringArg("SubterraURI", uri))
	}
	_, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    name,
		Args:    []element{stringArg("planUri", planURI), uris},
	})
	return err
}

// AddAllowedType declares a work item type as plannable in this plan.
func (p *Plans) AddAllowedType(ctx context.Context, planURI, typeName string) error {
	_, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "addPlanAllowedType",
		Args:    []element{stringArg("planUri", planURI), enumArg("type", typeName)},
	})
	return err
}

// RemoveAllowedType withdraws a work item type from the plan.
func (p *Plans) RemoveAllowedType(ctx context.Context, planURI, typeName string) error {
	_, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "removePlanAllowedType",
		Args:    []element{stringArg("planUri", planURI), enumArg("type", typeName)},
	})
	return err
}

// Search runs a Lucene query over plans. A negative limit means no
// limit.
func (p *Plans) Search(ctx context.Context, query, sort string, limit int) ([]core.Record, error) {
	if sort == "" {
		sort = "Created"
	}
	resp, err := p.client.call(ctx, operation{
		Service: "Planning",
		Name:    "searchPlans",
		Args:    []element{stringArg("query", query), stringArg("sort", sort), intArg("limit", limit)},
	})
	if err != nil {
		return nil, err
	}
	return returnedRecords(resp, core.KindPlan), nil
}

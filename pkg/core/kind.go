package core

import (
	"fmt"
	"strings"
)

// Kind identifies an entity variant. The set is closed: a switch over
// Kind covers everything this library can address, and URI dispatch
// fails loudly for anything else.
type Kind string

const (
	KindWorkItem Kind = "workitem"
	KindPlan     Kind = "plan"
	KindUser     Kind = "user"
	KindTestRun  Kind = "testrun"
	KindDocument Kind = "module"
	KindProject  Kind = "project"
)

// ParseURI extracts the entity kind from a subterra URI. The type token
// sits in braces, e.g.
//
//	subterra:data-service:objects:/default/Proj${WorkItem}PROJ-1
func ParseURI(uri string) (Kind, error) {
	if !strings.HasPrefix(uri, "subterra:") {
		return "", fmt.Errorf("not a subterra uri: %s", uri)
	}
	start := strings.IndexByte(uri, '{')
	end := strings.IndexByte(uri, '}')
	if start < 0 || end < start {
		return "", fmt.Errorf("no type token in uri: %s", uri)
	}
	token := strings.ToLower(uri[start+1 : end])
	switch k := Kind(token); k {
	case KindWorkItem, KindPlan, KindUser, KindTestRun, KindDocument, KindProject:
		return k, nil
	default:
		return "", &UnknownKindError{Token: token, URI: uri}
	}
}

package address

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/resource"
)

// IResolver resolves requests to replica addresses
type IResolver interface {
	Resolve(ctx context.Context, req *resource.Request, forceRefresh bool) (*Set, error)
}

// Selector narrows resolved address sets to the URIs the replicated dispatch needs
type Selector struct {
	resolver IResolver
}

// NewSelector creates a selector over resolver
func NewSelector(resolver IResolver) *Selector {
	return &Selector{resolver: resolver}
}

// ResolveAllURIs returns the URIs of all replicas, optionally without the primary
func (s *Selector) ResolveAllURIs(ctx context.Context, req *resource.Request, includePrimary, forceRefresh bool) ([]string, error) {
	set, err := s.resolver.Resolve(ctx, req, forceRefresh)
	if err != nil {
		return nil, err
	}
	return set.URIs(includePrimary), nil
}

// ResolvePrimaryURI returns the URI of the primary replica
func (s *Selector) ResolvePrimaryURI(ctx context.Context, req *resource.Request, forceRefresh bool) (string, error) {
	set, err := s.resolver.Resolve(ctx, req, forceRefresh)
	if err != nil {
		return "", err
	}
	return set.Primary()
}

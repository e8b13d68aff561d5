// Package graph implements relationship lookup by endpoint and
// bounded-depth traversal over the knowledge graph. It operates on
// snapshots handed to it by the store, the same way internal/search
// does.
package graph

import "github.com/hivemindhq/hivemind/internal/types"

// EntityLookup resolves an entity id to its current record.
type EntityLookup func(id int64) (*types.Entity, bool)

// RelationshipsOf returns every live relationship incident to entityID.
type RelationshipsOf func(entityID int64) []*types.Relationship

// Neighbor pairs a relationship with the entity at its other endpoint.
type Neighbor struct {
	Relationship *types.Relationship
	Other        *types.Entity
}

// EntityRelationships returns, for every live relationship where e is
// either endpoint, the pair (relationship, entity at the other
// endpoint). Relationships whose other endpoint is missing are
// skipped.
func EntityRelationships(e int64, relsOf RelationshipsOf, lookup EntityLookup) []Neighbor {
	rels := relsOf(e)
	out := make([]Neighbor, 0, len(rels))
	for _, r := range rels {
		otherID := otherEndpoint(r, e)
		other, found := lookup(otherID)
		if !found {
			continue
		}
		out = append(out, Neighbor{Relationship: r, Other: other})
	}
	return out
}

func otherEndpoint(r *types.Relationship, e int64) int64 {
	if r.SourceEntityID == e {
		return r.TargetEntityID
	}
	return r.SourceEntityID
}

// VisitedEntity is one entry of a traversal result: an entity reached
// during the walk paired with the live relationships incident to it.
type VisitedEntity struct {
	Entity        *types.Entity
	Relationships []*types.Relationship
}

type frontierItem struct {
	id    int64
	depth int
}

// Traverse performs a bounded-depth, loop-safe walk from start:
// explore a frontier, skip already-visited ids, and for each newly
// visited id enqueue the other endpoint of every live incident
// relationship at depth+1 (when relationTypes is non-empty, only
// relationships whose RelationType is in the set are followed — an
// opt-in filter that defaults to matching everything, preserving the
// default relation-type-agnostic behavior). Order of results is
// implementation-defined.
func Traverse(start int64, depth int, relsOf RelationshipsOf, lookup EntityLookup, relationTypes []string) []VisitedEntity {
	visited := make(map[int64]bool)
	frontier := []frontierItem{{id: start, depth: 0}}
	result := make([]VisitedEntity, 0)

	typeFilter := make(map[string]bool, len(relationTypes))
	for _, t := range relationTypes {
		typeFilter[t] = true
	}

	for len(frontier) > 0 {
		item := frontier[0]
		frontier = frontier[1:]

		if item.depth > depth || visited[item.id] {
			continue
		}
		visited[item.id] = true

		entity, found := lookup(item.id)
		if !found {
			continue
		}

		rels := relsOf(item.id)
		live := make([]*types.Relationship, 0, len(rels))
		for _, r := range rels {
			if len(typeFilter) > 0 && !typeFilter[r.RelationType] {
				continue
			}
			live = append(live, r)
			other := otherEndpoint(r, item.id)
			if !visited[other] {
				frontier = append(frontier, frontierItem{id: other, depth: item.depth + 1})
			}
		}

		result = append(result, VisitedEntity{Entity: entity, Relationships: live})
	}

	return result
}

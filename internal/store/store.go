// Package store is the engine's record store: concurrent mappings from
// id to {Memory, Entity, Relationship, Episode, Agent}, monotonic id
// allocators, and validity bookkeeping. It performs its own
// synchronization and hands back independent copies on every read, per
// the ownership rule that callers never hold references into the
// store.
package store

// Store bundles every record table the engine needs. It owns no
// business logic beyond the per-kind invariants documented on each
// table (history append-only, weak referential integrity for
// relationships, and so on); orchestration (audit-plus-replicate-plus-
// publish as one unit) lives in the engine package.
type Store struct {
	Memories      *MemoryStore
	Entities      *EntityStore
	Relationships *RelationshipStore
	Episodes      *EpisodeStore
	Agents        *AgentStore
}

// New creates an empty store.
func New() *Store {
	return &Store{
		Memories:      NewMemoryStore(),
		Entities:      NewEntityStore(),
		Relationships: NewRelationshipStore(),
		Episodes:      NewEpisodeStore(),
		Agents:        NewAgentStore(),
	}
}

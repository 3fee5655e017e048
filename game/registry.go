// game/registry.go
package game

import (
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/partyroom/persistence"
)

// Variant ids are stable wire identifiers, shared with the game catalog.
const (
	GameElimination = "0001" // forbidden-word elimination
	GamePresenter   = "0002" // topic presenting with a hidden word
	GameLateral     = "0003" // lateral-thinking puzzles
	GameProfile     = "0004" // image hint-guessing
)

// Session is the variant-agnostic view of an active game document. Each
// variant has its own concrete session type; this interface is what the
// generic ready/start machinery needs.
type Session interface {
	CurrentStatus() Status
	SetStatus(Status)
	// MarkReady flags the player as ready and reports whether the nickname
	// was found in the roster.
	MarkReady(nickname string) bool
	AllReady() bool
	// ResetReady clears every ready flag so the next phase collects a fresh
	// set of acknowledgements.
	ResetReady()
	setMeta(title string, startedAt time.Time)
}

// SessionMeta carries the catalog fields copied into every session document
// at start time. Embed it in concrete session types.
type SessionMeta struct {
	Title     string    `json:"title,omitempty"`
	StartedAt time.Time `json:"startedAt,omitzero"`
}

func (m *SessionMeta) setMeta(title string, startedAt time.Time) {
	m.Title = title
	m.StartedAt = startedAt
}

// Variant is one concrete mini-game. Implementations are registered once at
// startup; game logic never reaches a variant through anything but this
// registry, so an unknown id is a configuration error, not a runtime lookup.
type Variant interface {
	ID() string
	// ReadyStatus is the phase entered once every player marked ready.
	ReadyStatus() Status
	// NewSession returns an empty session of the variant's concrete type,
	// ready to be unmarshalled into.
	NewSession() Session
	// Initialize draws the opening assets and builds the session for the
	// given roster. It runs inside the startGame transaction.
	Initialize(tx persistence.Tx, rng Rand, nicknames []string) (Session, error)
}

// Registry maps game ids to their variant implementations.
type Registry struct {
	variants map[string]Variant
}

func NewRegistry(variants ...Variant) (*Registry, error) {
	r := &Registry{variants: make(map[string]Variant, len(variants))}
	for _, v := range variants {
		if _, dup := r.variants[v.ID()]; dup {
			return nil, fmt.Errorf("variant %q registered twice", v.ID())
		}
		r.variants[v.ID()] = v
	}
	return r, nil
}

// DefaultRegistry registers the four production variants.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		&EliminationVariant{},
		&PresenterVariant{},
		&LateralVariant{},
		&ProfileVariant{},
	)
	if err != nil {
		panic(err) // duplicate ids are a programming error
	}
	return r
}

func (r *Registry) Variant(id string) (Variant, bool) {
	v, ok := r.variants[id]
	return v, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.variants))
	for id := range r.variants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

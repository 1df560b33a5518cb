package reminder

import "tgremind/internal/transport"

// Registry is the set of chats known to the process. Chats are never
// forgotten once seen.
//
// Not safe for concurrent use; it is owned by the polling loop.
type Registry struct {
	ids  []transport.ChatID
	seen map[transport.ChatID]struct{}
}

// NewRegistry returns a registry seeded with statically configured chats.
func NewRegistry(static []transport.ChatID) *Registry {
	r := &Registry{seen: map[transport.ChatID]struct{}{}}
	r.Discover(static)
	return r
}

// Discover adds ids to the set and returns the full set in first-seen order.
func (r *Registry) Discover(ids []transport.ChatID) []transport.ChatID {
	for _, id := range ids {
		if _, ok := r.seen[id]; ok {
			continue
		}
		r.seen[id] = struct{}{}
		r.ids = append(r.ids, id)
	}
	return r.IDs()
}

func (r *Registry) IDs() []transport.ChatID {
	return append([]transport.ChatID(nil), r.ids...)
}

func (r *Registry) Len() int { return len(r.ids) }

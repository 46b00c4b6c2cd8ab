package websocket

import (
	"sort"

	"github.com/wricardo/volley-relay/relay/protocol"
)

// Registry tracks every live connection by ID.
// It is owned by the hub goroutine and is not safe for concurrent use.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register adds c
func (r *Registry) Register(c *Client) {
	r.clients[c.id] = c
}

// Get returns the client with id
func (r *Registry) Get(id string) (*Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Unregister removes id and reports whether it was present
func (r *Registry) Unregister(id string) bool {
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	return true
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	return len(r.clients)
}

// All returns every client, oldest first
func (r *Registry) All() []*Client {
	return r.ListByRole("", "")
}

// ListByRole returns the clients in matchID (any match when empty) whose role
// is not exclude (no exclusion when empty), oldest first
func (r *Registry) ListByRole(matchID string, exclude protocol.Role) []*Client {
	result := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if matchID != "" && c.matchID != matchID {
			continue
		}
		if exclude != "" && c.role == exclude {
			continue
		}
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].connectedAt.Equal(result[j].connectedAt) {
			return result[i].id < result[j].id
		}
		return result[i].connectedAt.Before(result[j].connectedAt)
	})
	return result
}

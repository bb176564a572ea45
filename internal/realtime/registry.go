package realtime

import "sync"

// Registry maps a user id to its single active channel id. A later binding
// for the same user silently supersedes an earlier one; entries are process
// local and vanish on restart together with the channels they point at.
type Registry struct {
	mu       sync.Mutex
	channels map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]string)}
}

// Register binds channelID as the user's active channel, overwriting any
// previous binding.
func (r *Registry) Register(userID, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[userID] = channelID
}

// Remove deletes the binding whose value equals channelID. Close events only
// carry the channel id, so this is a reverse lookup by value; comparing the
// channel identity keeps a stale close from evicting a newer binding for the
// same user.
func (r *Registry) Remove(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, bound := range r.channels {
		if bound == channelID {
			delete(r.channels, userID)
			return
		}
	}
}

// Resolve returns the user's active channel id, if any.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	channelID, ok := r.channels[userID]
	return channelID, ok
}

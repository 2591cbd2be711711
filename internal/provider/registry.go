package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/asoclub/notify-engine/internal/domain"
)

// Entry annotates a registered adapter with the metadata the selector and
// the diagnostics snapshot need. Ordering of entries per channel is
// explicit and encodes a deliberate business preference; the registry never
// re-sorts at runtime.
type Entry struct {
	Name    string
	Adapter Adapter
	// Configured reports whether the vendor's credentials were supplied.
	// Unconfigured entries stay listed for diagnostics but are skipped by
	// the selector without counting as a failed attempt.
	Configured bool
	// Available allows marking a configured vendor out of rotation (known
	// outage) without removing its registration.
	Available   bool
	UnitCost    float64
	Limitations string
}

// EntrySnapshot is the operator-facing view of one registered provider.
type EntrySnapshot struct {
	Name        string  `json:"name"`
	Configured  bool    `json:"configured"`
	Available   bool    `json:"available"`
	Cost        float64 `json:"cost"`
	Status      string  `json:"status"`
	Limitations string  `json:"limitations,omitempty"`
}

// Registry holds the ordered candidate lists per channel. Contents are
// written during startup wiring and read-only afterwards; the mutex only
// guards against misuse during construction.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.Channel][]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.Channel][]Entry)}
}

// Register appends an entry to a channel's candidate list. Registration
// order is selection order.
func (r *Registry) Register(channel domain.Channel, entry Entry) error {
	if !channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}
	entry.Name = strings.ToLower(strings.TrimSpace(entry.Name))
	if entry.Name == "" {
		return fmt.Errorf("%w: provider name is required", domain.ErrValidation)
	}
	if entry.Configured && entry.Adapter == nil {
		return fmt.Errorf("%w: configured provider %q needs an adapter", domain.ErrValidation, entry.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries[channel] {
		if existing.Name == entry.Name {
			return fmt.Errorf("provider %q already registered for channel %s", entry.Name, channel)
		}
	}

	r.entries[channel] = append(r.entries[channel], entry)
	return nil
}

// Next returns the first candidate for the channel that is not excluded.
// Unconfigured or unavailable entries are skipped silently. The second
// return value is false once the chain is exhausted.
func (r *Registry) Next(channel domain.Channel, excluded map[string]struct{}) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries[channel] {
		if _, skip := excluded[entry.Name]; skip {
			continue
		}
		if !entry.Configured || !entry.Available || entry.Adapter == nil {
			continue
		}
		return entry, true
	}
	return Entry{}, false
}

// Find locates a provider by name across all channels, used by the tracker
// which is keyed by provider identifier only.
func (r *Registry) Find(name string) (Entry, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entries := range r.entries {
		for _, entry := range entries {
			if entry.Name == normalized {
				return entry, true
			}
		}
	}
	return Entry{}, false
}

// Snapshot returns the ordered diagnostics view for one channel.
func (r *Registry) Snapshot(channel domain.Channel) []EntrySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[channel]
	snapshots := make([]EntrySnapshot, 0, len(entries))
	for _, entry := range entries {
		status := "ready"
		switch {
		case !entry.Configured:
			status = "not_configured"
		case !entry.Available:
			status = "unavailable"
		}

		snapshots = append(snapshots, EntrySnapshot{
			Name:        entry.Name,
			Configured:  entry.Configured,
			Available:   entry.Available,
			Cost:        entry.UnitCost,
			Status:      status,
			Limitations: entry.Limitations,
		})
	}
	return snapshots
}

// Channels returns the channels that have at least one registration.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]domain.Channel, 0, len(r.entries))
	for channel := range r.entries {
		channels = append(channels, channel)
	}
	return channels
}

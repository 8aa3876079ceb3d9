package registry

import "sort"

// wildcardMarker is the single-element list a registering client sends to
// request a wildcard whitelist.
const wildcardMarker = "*"

// Whitelist is a two-variant allow-list: either Wildcard, matching any
// sender, or an explicit set of allowed user ids. No other state is
// representable. The zero value is an empty allowed set.
type Whitelist struct {
	wildcard bool
	allowed  map[string]struct{}
}

// NewWildcard returns a whitelist accepting every sender.
func NewWildcard() *Whitelist {
	return &Whitelist{wildcard: true}
}

// NewAllowed returns a whitelist accepting exactly the given ids,
// deduplicated.
func NewAllowed(ids []string) *Whitelist {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return &Whitelist{allowed: allowed}
}

// NewWhitelistFromList builds a whitelist from a registration list: exactly
// ["*"] selects the wildcard variant, anything else becomes an allowed set.
func NewWhitelistFromList(ids []string) *Whitelist {
	if len(ids) == 1 && ids[0] == wildcardMarker {
		return NewWildcard()
	}
	return NewAllowed(ids)
}

// IsWildcard reports whether the whitelist is in the wildcard state.
func (w *Whitelist) IsWildcard() bool {
	return w.wildcard
}

// Allows reports whether a sender with the given id may deliver to the
// whitelist's owner.
func (w *Whitelist) Allows(senderID string) bool {
	if w.wildcard {
		return true
	}
	_, ok := w.allowed[senderID]
	return ok
}

// Add inserts an id into the allowed set. Adding to a wildcard narrows it to
// an allowed set containing only the added id; the returned flag reports that
// conversion.
func (w *Whitelist) Add(id string) (converted bool) {
	if w.wildcard {
		w.wildcard = false
		w.allowed = map[string]struct{}{id: {}}
		return true
	}
	if w.allowed == nil {
		w.allowed = make(map[string]struct{})
	}
	w.allowed[id] = struct{}{}
	return false
}

// Remove discards an id from the allowed set; removing from a wildcard
// clears it to an empty allowed set. Removing an absent id is not an error.
func (w *Whitelist) Remove(id string) {
	if w.wildcard {
		w.wildcard = false
		w.allowed = make(map[string]struct{})
		return
	}
	delete(w.allowed, id)
}

// SetWildcard switches to the wildcard state when enabled, or to an empty
// allowed set when disabled.
func (w *Whitelist) SetWildcard(enabled bool) {
	w.wildcard = enabled
	if enabled {
		w.allowed = nil
	} else {
		w.allowed = make(map[string]struct{})
	}
}

// Entries renders the whitelist as an ordered list of user ids, or ["*"] in
// the wildcard state.
func (w *Whitelist) Entries() []string {
	if w.wildcard {
		return []string{wildcardMarker}
	}
	out := make([]string, 0, len(w.allowed))
	for id := range w.allowed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

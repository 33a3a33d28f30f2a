package model

// Target declares an input filter for a subscriber: a domain plus an
// optional whitelist of event type URLs (spec §3).
type Target struct {
	Domain    string
	EventURLs []string
}

// Matches reports whether an event with the given type URL on this
// target's domain should be delivered. An empty EventURLs list means
// "all events on this domain".
func (t Target) Matches(typeURL string) bool {
	if len(t.EventURLs) == 0 {
		return true
	}

	for _, u := range t.EventURLs {
		if u == typeURL {
			return true
		}
	}

	return false
}

package connectors

import "strings"

// SenderFilter restricts intake to the senders quote requests actually come
// from (lead-form relays, partner portals). An empty filter admits everything,
// which is the right default for a dedicated intake mailbox.
type SenderFilter struct {
	needles []string
}

// NewSenderFilter parses the comma-separated MAIL_ALLOWED_SENDERS value.
// Entries may be full addresses or bare domains.
func NewSenderFilter(spec string) SenderFilter {
	var needles []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		needles = append(needles, part)
	}
	return SenderFilter{needles: needles}
}

// Admit reports whether mail from the given From header should be fetched.
// Matching is a case-insensitive substring test so that both
// "leads@moves.example" and "moves.example" admit
// `Moving Leads <leads@moves.example>`.
func (f SenderFilter) Admit(from string) bool {
	if len(f.needles) == 0 {
		return true
	}
	from = strings.ToLower(from)
	for _, needle := range f.needles {
		if strings.Contains(from, needle) {
			return true
		}
	}
	return false
}

// Senders returns the parsed filter entries, for provider-side query building.
func (f SenderFilter) Senders() []string {
	out := make([]string, len(f.needles))
	copy(out, f.needles)
	return out
}

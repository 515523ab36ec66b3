package sync

import "strings"

// ProjectedName builds the destination secret/config name from a prefix,
// raw discovered key, and suffix, per spec.md §4.9:
//
//	projected = sanitize(join("-", [prefix?, sanitize_key(k), suffix?]))
func ProjectedName(prefix, key, suffix string) string {
	segments := make([]string, 0, 3)
	if prefix != "" {
		segments = append(segments, prefix)
	}
	segments = append(segments, sanitizeKey(key))
	if suffix != "" {
		segments = append(segments, suffix)
	}
	return sanitizeKey(strings.Join(segments, "-"))
}

// sanitizeKey replaces any character outside [A-Za-z0-9_-] with "_",
// collapses consecutive "-" to a single "-", and trims leading/trailing
// "-". Empty segments collapse out as a result of the join+resanitize in
// ProjectedName.
func sanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	collapsed := collapseDashes(b.String())
	return strings.Trim(collapsed, "-")
}

func collapseDashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for _, r := range s {
		if r == '-' {
			if prevDash {
				continue
			}
			prevDash = true
		} else {
			prevDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

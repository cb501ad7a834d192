package schema

import (
	"strconv"
	"strings"

	"github.com/estuary/data-plane-core/go/reduce"
)

// Locate builds a reduce.Locate callback from a validation Result,
// resolving the reduce Strategy annotated at a child location by JSON
// Pointer tokens, the bridge between the schema validator's per-location
// annotations and the reduce package's recursive strategy dispatch.
func (r *Result) Locate() reduce.Locate {
	return func(tokens []string) reduce.Strategy {
		var path = pointerOf(tokens)
		if ann, ok := r.Annotations[path]; ok {
			return ann.Reduce
		}
		return nil
	}
}

func pointerOf(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range tokens {
		b.WriteByte('/')
		if _, err := strconv.Atoi(t); err == nil {
			b.WriteString(t)
			continue
		}
		b.WriteString(escapeToken(t))
	}
	return b.String()
}

// RedactAt resolves the redact Strategy annotated at a location.
func (r *Result) RedactAt(tokens []string) RedactStrategy {
	if ann, ok := r.Annotations[pointerOf(tokens)]; ok {
		return ann.Redact
	}
	return RedactNone
}

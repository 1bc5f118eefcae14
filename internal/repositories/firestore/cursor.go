package firestore

import (
	"time"

	"github.com/kograph/api/internal/platform/pagination"
)

// cursorValues rehydrates a decoded page token for use in StartAfter. JSON
// round-trips timestamps as RFC3339 strings; Firestore needs them back as
// time.Time to compare against timestamp fields.
func cursorValues(cursor pagination.Cursor) []any {
	out := make([]any, 0, len(cursor.StartAfter))
	for _, value := range cursor.StartAfter {
		if str, ok := value.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, str); err == nil {
				out = append(out, ts)
				continue
			}
		}
		out = append(out, value)
	}
	return out
}

package stock

import (
	"sort"
	"strings"
)

// FormatMessage renders the notification body: one line per in-stock variant,
// the variant ID immediately followed by its URL, ordered by variant ID.
func FormatMessage(inStock map[string]string) string {
	ids := make([]string, 0, len(inStock))
	for id := range inStock {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, id+inStock[id])
	}
	return strings.Join(lines, "\n")
}

package archive

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrStorageMissing is returned when the storage directory does not exist.
// The directory is never created implicitly.
var ErrStorageMissing = errors.New("storage directory does not exist")

// SeenSet is the set of item identifiers already present in storage.
type SeenSet map[string]struct{}

// NewSeenSet returns a set holding ids.
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id has been downloaded.
func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add records id as downloaded.
func (s SeenSet) Add(id string) {
	s[id] = struct{}{}
}

// Len returns the number of identifiers.
func (s SeenSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in lexical order.
func (s SeenSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeriveSeenSet scans dir (non-recursively) and returns the identifier of
// every entry, i.e. its name without the final extension. Entries with no
// extension or an empty stem are skipped.
func DeriveSeenSet(dir string) (SeenSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStorageMissing, dir)
		}
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	seen := make(SeenSet, len(entries))
	for _, entry := range entries {
		if id := stem(entry.Name()); id != "" {
			seen.Add(id)
		}
	}
	return seen, nil
}

// stem strips the final "."-delimited suffix from name.
func stem(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return name[:i]
}

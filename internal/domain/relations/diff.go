package relations

import "privacyhub/internal/domain/tenancy"

type SyncResult struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Unchanged []string `json:"unchanged"`
}

func (r SyncResult) Changed() bool { return len(r.Added) > 0 || len(r.Removed) > 0 }

// Diff computes the minimal changes turning current into desired. Output keeps
// the order of the input slices and never contains duplicates.
func Diff(current, desired []string) SyncResult {
	current = tenancy.Dedupe(current)
	desired = tenancy.Dedupe(desired)

	want := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}

	res := SyncResult{Added: []string{}, Removed: []string{}, Unchanged: []string{}}
	for _, id := range current {
		if _, ok := want[id]; ok {
			res.Unchanged = append(res.Unchanged, id)
		} else {
			res.Removed = append(res.Removed, id)
		}
	}
	for _, id := range desired {
		if _, ok := have[id]; !ok {
			res.Added = append(res.Added, id)
		}
	}
	return res
}

package inspect

import (
	"context"
	"strings"
)

// Search returns up to limit activities whose content contains query,
// ignoring case. An empty query returns the first limit activities. A
// non-positive limit means ten.
func (in *Inspector) Search(ctx context.Context, query string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if query == "" {
		return in.Activities(ctx, limit)
	}

	all, err := in.Activities(ctx, scanAll)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	out := make([]Activity, 0, limit)
	for _, a := range all {
		if strings.Contains(strings.ToLower(a.Content), needle) {
			out = append(out, a)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

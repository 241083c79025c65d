package keyword

import (
	"context"
	"sort"
	"strings"
)

// Suggestion is a known field value close to a value that matched nothing.
type Suggestion struct {
	Value    string `json:"value"`
	Distance int    `json:"distance"`
	Count    int    `json:"count"`
}

// SuggestValues returns up to limit values of field within maxDistance
// case-insensitive edits of value, nearest first, then by document count.
func SuggestValues(ctx context.Context, idx MetadataIndex, field, value string, maxDistance, limit int) ([]Suggestion, error) {
	values, err := idx.DistinctValues(ctx, field)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(value)
	var out []Suggestion
	for _, v := range values {
		if v.Value == value {
			continue
		}
		if d := editDistance(want, strings.ToLower(v.Value)); d <= maxDistance {
			out = append(out, Suggestion{Value: v.Value, Distance: d, Count: v.Count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/litindex/internal/models"
)

// ParseFilters builds a query filter from key=value flags.
//
//	journal=Nature            exact value
//	journal=Nature,Cell       any of
//	year=2020..2023           inclusive numeric range; either bound may be omitted
//
// Repeating a key widens its value set.
func ParseFilters(pairs []string) (models.QueryFilter, error) {
	filter := models.QueryFilter{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("%w: filter %q must be key=value", models.ErrMalformedInput, pair)
		}
		existing, seen := filter[key]

		if lo, hi, isRange := strings.Cut(value, ".."); isRange {
			if seen {
				return nil, fmt.Errorf("%w: filter %q: a range cannot be combined with other constraints", models.ErrMalformedInput, key)
			}
			r, err := parseRange(lo, hi)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %q: %w", models.ErrMalformedInput, key, err)
			}
			filter[key] = models.FieldFilter{Range: r}
			continue
		}

		if seen && existing.Range != nil {
			return nil, fmt.Errorf("%w: filter %q: a range cannot be combined with other constraints", models.ErrMalformedInput, key)
		}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				existing.Values = append(existing.Values, v)
			}
		}
		if len(existing.Values) == 0 {
			return nil, fmt.Errorf("%w: filter %q has no values", models.ErrMalformedInput, key)
		}
		filter[key] = existing
	}
	if len(filter) == 0 {
		return nil, nil
	}
	return filter, nil
}

func parseRange(lo, hi string) (*models.Range, error) {
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return nil, fmt.Errorf("range needs at least one bound")
	}
	r := &models.Range{}
	if lo != "" {
		n, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid lower bound %q", lo)
		}
		r.Gte = &n
	}
	if hi != "" {
		n, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid upper bound %q", hi)
		}
		r.Lte = &n
	}
	if r.Gte != nil && r.Lte != nil && *r.Gte > *r.Lte {
		return nil, fmt.Errorf("lower bound %s exceeds upper bound %s", lo, hi)
	}
	return r, nil
}

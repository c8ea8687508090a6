package usecase

import "PersonaPipeline/internal/domain"

// NewSourceItems returns the discovered units whose source URL is not yet
// recorded. Matching is by URL only; a retitled video at a known URL is not new.
// Discovery order is kept and repeats inside the listing are dropped.
func NewSourceItems(discovered []domain.Discovered, existing map[string]struct{}) []domain.Discovered {
	fresh := make([]domain.Discovered, 0, len(discovered))
	seen := make(map[string]struct{}, len(discovered))
	for _, unit := range discovered {
		if _, ok := existing[unit.URL]; ok {
			continue
		}
		if _, ok := seen[unit.URL]; ok {
			continue
		}
		seen[unit.URL] = struct{}{}
		fresh = append(fresh, unit)
	}
	return fresh
}

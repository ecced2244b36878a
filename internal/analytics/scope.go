package analytics

import "github.com/noah-isme/smallgroups-admin-api/internal/models"

// ActiveTerritoryIDs returns every known territory when nothing is selected,
// otherwise the known territories that are also selected.
func ActiveTerritoryIDs(known []models.Territory, selected []int64) []int64 {
	chosen := toSet(selected)
	ids := make([]int64, 0, len(known))
	for _, t := range known {
		if len(chosen) > 0 {
			if _, ok := chosen[t.ID]; !ok {
				continue
			}
		}
		ids = append(ids, t.ID)
	}
	return ids
}

// ActiveGroupIDs keeps groups that belong to an active territory and, when a
// group selection exists, are also selected.
func ActiveGroupIDs(groups []models.Group, activeTerritories, selected []int64) []int64 {
	territories := toSet(activeTerritories)
	chosen := toSet(selected)
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		if _, ok := territories[g.TerritoryID]; !ok {
			continue
		}
		if len(chosen) > 0 {
			if _, ok := chosen[g.ID]; !ok {
				continue
			}
		}
		ids = append(ids, g.ID)
	}
	return ids
}

// Selection is the territory and group filter chosen by a user.
type Selection struct {
	Territories []int64 `json:"territory_ids"`
	Groups      []int64 `json:"group_ids"`
}

// ToggleTerritory adds or removes a territory. The group selection is always
// cleared so it can never reference groups outside the new territory scope.
func (s Selection) ToggleTerritory(id int64) Selection {
	return Selection{Territories: toggle(s.Territories, id)}
}

// ToggleGroup adds or removes a group.
func (s Selection) ToggleGroup(id int64) Selection {
	return Selection{
		Territories: append([]int64(nil), s.Territories...),
		Groups:      toggle(s.Groups, id),
	}
}

// Resolve returns the active territory and group ids for the selection.
func (s Selection) Resolve(territories []models.Territory, groups []models.Group) ([]int64, []int64) {
	territoryIDs := ActiveTerritoryIDs(territories, s.Territories)
	return territoryIDs, ActiveGroupIDs(groups, territoryIDs, s.Groups)
}

func toggle(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

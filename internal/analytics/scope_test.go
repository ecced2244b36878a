package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

var (
	scopeTerritories = []models.Territory{{ID: 1, Name: "Norte"}, {ID: 2, Name: "Sur"}, {ID: 3, Name: "Centro"}}
	scopeGroups      = []models.Group{
		{ID: 10, TerritoryID: 1},
		{ID: 11, TerritoryID: 1},
		{ID: 20, TerritoryID: 2},
		{ID: 30, TerritoryID: 3},
	}
)

func TestActiveTerritoryIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, ActiveTerritoryIDs(scopeTerritories, nil))
	assert.Equal(t, []int64{2}, ActiveTerritoryIDs(scopeTerritories, []int64{2, 99}))
	assert.Empty(t, ActiveTerritoryIDs(scopeTerritories, []int64{99}))
}

func TestActiveGroupIDs(t *testing.T) {
	assert.Equal(t, []int64{10, 11, 20}, ActiveGroupIDs(scopeGroups, []int64{1, 2}, nil))
	assert.Equal(t, []int64{11}, ActiveGroupIDs(scopeGroups, []int64{1, 2}, []int64{11, 30}))
	assert.Empty(t, ActiveGroupIDs(scopeGroups, nil, nil))
}

func TestSelectionTerritoryToggleClearsGroups(t *testing.T) {
	sel := Selection{}.ToggleTerritory(1).ToggleGroup(10)
	assert.Equal(t, []int64{10}, sel.Groups)

	sel = sel.ToggleTerritory(2)
	assert.Equal(t, []int64{1, 2}, sel.Territories)
	assert.Empty(t, sel.Groups)

	sel = sel.ToggleTerritory(1)
	assert.Equal(t, []int64{2}, sel.Territories)

	territories, groups := sel.Resolve(scopeTerritories, scopeGroups)
	assert.Equal(t, []int64{2}, territories)
	assert.Equal(t, []int64{20}, groups)
}

func TestSelectionStaleGroupDropsOutOfScope(t *testing.T) {
	sel := Selection{Territories: []int64{2}, Groups: []int64{10}}
	_, groups := sel.Resolve(scopeTerritories, scopeGroups)
	assert.Empty(t, groups)
}

package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type tallyRow struct {
	group  string
	person *string
	isNew  bool
}

func TestGroupByKeepsFirstSeenOrder(t *testing.T) {
	rows := []tallyRow{
		{group: "b", person: strPtr("p1"), isNew: true},
		{group: "a", person: strPtr("p1")},
		{group: "b", person: strPtr("p1")},
		{group: "b"},
		{group: ""},
	}
	add := func(acc *Tally, r tallyRow) { acc.Add(r.person, r.isNew) }

	byGroup := NewGroups[string, Tally]()
	overall := NewGroups[bool, Tally]()
	Fold(rows,
		GroupBy(byGroup, func(r tallyRow) (string, bool) { return r.group, r.group != "" }, add),
		GroupBy(overall, func(tallyRow) (bool, bool) { return true, true }, add),
	)

	assert.Equal(t, []string{"b", "a"}, byGroup.Keys())
	assert.False(t, byGroup.Has(""))
	b := byGroup.Slot("b")
	assert.Equal(t, 3, b.Count)
	assert.Equal(t, 1, b.New)
	assert.Equal(t, 1, b.Unique())
	assert.Equal(t, 1, byGroup.Slot("a").Count)

	assert.Equal(t, 1, overall.Len())
	assert.Equal(t, 5, overall.Slot(true).Count)
	assert.Equal(t, 1, overall.Slot(true).Unique())
}

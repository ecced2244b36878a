package analytics

// Tally counts rows and the distinct people behind them.
type Tally struct {
	Count  int
	New    int
	people map[string]struct{}
}

// Add records one row. A missing person still counts toward Count.
func (t *Tally) Add(personID *string, isNew bool) {
	t.Count++
	if isNew {
		t.New++
	}
	if personID == nil || *personID == "" {
		return
	}
	if t.people == nil {
		t.people = make(map[string]struct{})
	}
	t.people[*personID] = struct{}{}
}

// Unique returns the number of distinct people seen.
func (t *Tally) Unique() int {
	return len(t.people)
}

// Groups keeps one accumulator per group key in first-seen order.
type Groups[K comparable, A any] struct {
	keys  []K
	slots map[K]*A
}

// NewGroups returns an empty grouping.
func NewGroups[K comparable, A any]() *Groups[K, A] {
	return &Groups[K, A]{slots: make(map[K]*A)}
}

// Slot returns the accumulator for k, creating it on first use.
func (g *Groups[K, A]) Slot(k K) *A {
	if slot, ok := g.slots[k]; ok {
		return slot
	}
	slot := new(A)
	g.slots[k] = slot
	g.keys = append(g.keys, k)
	return slot
}

// Has reports whether k already owns a slot.
func (g *Groups[K, A]) Has(k K) bool {
	_, ok := g.slots[k]
	return ok
}

// Keys returns keys in the order they were first seen.
func (g *Groups[K, A]) Keys() []K {
	return g.keys
}

// Len returns the number of slots.
func (g *Groups[K, A]) Len() int {
	return len(g.keys)
}

// Route feeds a single row into an accumulator.
type Route[R any] func(R)

// GroupBy builds a Route that selects the slot of key(row) and updates it with add.
// Rows for which key reports false are skipped.
func GroupBy[R any, K comparable, A any](g *Groups[K, A], key func(R) (K, bool), add func(*A, R)) Route[R] {
	return func(row R) {
		k, ok := key(row)
		if !ok {
			return
		}
		add(g.Slot(k), row)
	}
}

// Fold walks rows once and hands every row to each route.
func Fold[R any](rows []R, routes ...Route[R]) {
	for _, row := range rows {
		for _, route := range routes {
			route(row)
		}
	}
}

// Package reconcile computes the writes that bring a remote collection in
// line with local state.
package reconcile

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
)

// Change is a document to write.
type Change[T any] struct {
	Key  string
	Item T
}

// Plan lists the deletes and upserts for one collection, both ordered by key.
type Plan[T any] struct {
	ToDelete []string
	ToUpsert []Change[T]
}

// Empty reports whether the plan has no writes.
func (p Plan[T]) Empty() bool {
	return len(p.ToDelete) == 0 && len(p.ToUpsert) == 0
}

// Len is the number of writes in the plan.
func (p Plan[T]) Len() int {
	return len(p.ToDelete) + len(p.ToUpsert)
}

// Index keys items by key. Later items win on duplicate keys.
func Index[T any](items []T, key func(T) string) map[string]T {
	out := make(map[string]T, len(items))
	for _, it := range items {
		out[key(it)] = it
	}
	return out
}

// Equal is the structural equality used to detect changed items.
func Equal[T any](a, b T) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// Diff returns the remote keys missing locally as ToDelete, and the local
// entries missing remotely or differing from their remote version as ToUpsert.
// Identical inputs produce an empty plan.
func Diff[T any](local, remote map[string]T) Plan[T] {
	var p Plan[T]
	for k := range remote {
		if _, ok := local[k]; !ok {
			p.ToDelete = append(p.ToDelete, k)
		}
	}
	for k, l := range local {
		if r, ok := remote[k]; ok && Equal(l, r) {
			continue
		}
		p.ToUpsert = append(p.ToUpsert, Change[T]{Key: k, Item: l})
	}
	sort.Strings(p.ToDelete)
	sort.Slice(p.ToUpsert, func(i, j int) bool { return p.ToUpsert[i].Key < p.ToUpsert[j].Key })
	return p
}

// Overwrite plans a full rewrite of a collection: every local item accepted by
// keep is written, and every existing document that is not being rewritten is
// deleted. A document is never both deleted and written in the same plan, so
// the result equals delete-everything-then-insert when applied atomically.
func Overwrite[T any](local []T, existing []string, key func(T) string, keep func(T) bool) Plan[T] {
	var p Plan[T]
	written := make(map[string]bool, len(local))
	for _, it := range local {
		if keep != nil && !keep(it) {
			continue
		}
		k := key(it)
		written[k] = true
		p.ToUpsert = append(p.ToUpsert, Change[T]{Key: k, Item: it})
	}
	for _, k := range existing {
		if !written[k] {
			p.ToDelete = append(p.ToDelete, k)
		}
	}
	sort.Strings(p.ToDelete)
	sort.Slice(p.ToUpsert, func(i, j int) bool { return p.ToUpsert[i].Key < p.ToUpsert[j].Key })
	return p
}

// MealPlan plans the full-window overwrite of a meal plan collection. Days
// without meals are never written.
func MealPlan(window []models.DayPlan, existing []string) Plan[models.DayPlan] {
	return Overwrite(window, existing, func(d models.DayPlan) string { return d.Date }, mealplan.HasMeals)
}

package service

import (
	"context"
	"fmt"
	"log"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// BackrefStore holds the denormalized parent -> child collections.
type BackrefStore interface {
	Pull(ctx context.Context, children []model.EntityRef) (int64, error)
	Push(ctx context.Context, links []model.BackRef) error
	Children(ctx context.Context, parent model.EntityRef, childKind model.EntityKind) ([]uint64, error)
	CountChildren(ctx context.Context, parent model.EntityRef, childKind model.EntityKind) (int, error)
	PruneDuplicates(ctx context.Context) (int64, error)
}

// parentKinds lists which entity kinds keep a collection of each child kind.
var parentKinds = map[model.EntityKind][]model.EntityKind{
	model.KindSeat:        {model.KindTheatre, model.KindScreen},
	model.KindScreen:      {model.KindTheatre},
	model.KindShowing:     {model.KindMovie, model.KindTheatre, model.KindScreen},
	model.KindSeatMap:     {model.KindShowing},
	model.KindMovieCredit: {model.KindMovie, model.KindPerson},
}

// Child is a tracked entity together with the parents that list it.
type Child struct {
	Ref     model.EntityRef
	Parents []model.EntityRef
}

// IntegrityMaintainer keeps parent back-references in step with child
// writes.  Write paths call it explicitly after the child row is committed.
type IntegrityMaintainer struct {
	store BackrefStore
}

// NewIntegrityMaintainer returns a maintainer over store.
func NewIntegrityMaintainer(store BackrefStore) *IntegrityMaintainer {
	return &IntegrityMaintainer{store: store}
}

// OnCreate adds child to each of its parents.
func (m *IntegrityMaintainer) OnCreate(ctx context.Context, child model.EntityRef, parents ...model.EntityRef) error {
	return m.sync(ctx, []Child{{Ref: child, Parents: parents}}, true)
}

// OnCreateMany is OnCreate for a batch, issued as one push.
func (m *IntegrityMaintainer) OnCreateMany(ctx context.Context, children []Child) error {
	return m.sync(ctx, children, true)
}

// OnDelete removes child from every parent that lists it.
func (m *IntegrityMaintainer) OnDelete(ctx context.Context, child model.EntityRef) error {
	return m.OnDeleteMany(ctx, []model.EntityRef{child})
}

// OnDeleteMany removes a batch of children from every parent.
func (m *IntegrityMaintainer) OnDeleteMany(ctx context.Context, children []model.EntityRef) error {
	if len(children) == 0 {
		return nil
	}
	if _, err := m.store.Pull(ctx, children); err != nil {
		log.Printf("cascade: pull of %d child reference(s) failed: %v", len(children), err)
		return apperr.Internal("cascade delete", err)
	}
	return nil
}

// OnReparent moves child from oldParents to newParents.  When the two sets
// are equal nothing is written.
func (m *IntegrityMaintainer) OnReparent(ctx context.Context, child model.EntityRef, oldParents, newParents []model.EntityRef) error {
	if sameRefs(oldParents, newParents) {
		return nil
	}
	return m.sync(ctx, []Child{{Ref: child, Parents: newParents}}, false)
}

// sync pulls every child from all parents, then pushes it onto its current
// parents.  A brand-new child has nothing to pull, so isNew skips that
// step.  The two writes are not atomic: a failed push after a successful
// pull leaves the child unlisted, which is logged and returned.
func (m *IntegrityMaintainer) sync(ctx context.Context, children []Child, isNew bool) error {
	if len(children) == 0 {
		return nil
	}
	refs := make([]model.EntityRef, 0, len(children))
	var links []model.BackRef
	for _, c := range children {
		if err := checkParents(c); err != nil {
			return apperr.Internal("cascade", err)
		}
		refs = append(refs, c.Ref)
		for _, p := range c.Parents {
			links = append(links, model.BackRef{Parent: p, Child: c.Ref})
		}
	}

	pulled := false
	if !isNew {
		if _, err := m.store.Pull(ctx, refs); err != nil {
			log.Printf("cascade: pull of %v failed, parents unchanged: %v", refs, err)
			return apperr.Internal("cascade pull", err)
		}
		pulled = true
	}
	if err := m.store.Push(ctx, links); err != nil {
		if pulled {
			log.Printf("cascade: partial failure, %v pulled but push of %d link(s) failed: %v", refs, len(links), err)
		} else {
			log.Printf("cascade: push of %d link(s) for %v failed: %v", len(links), refs, err)
		}
		return apperr.Internal("cascade push", err)
	}
	return nil
}

func checkParents(c Child) error {
	allowed, ok := parentKinds[c.Ref.Kind]
	if !ok {
		return fmt.Errorf("%s is not a tracked child kind", c.Ref.Kind)
	}
	for _, p := range c.Parents {
		found := false
		for _, k := range allowed {
			if p.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s cannot hold %s", p.Kind, c.Ref.Kind)
		}
	}
	return nil
}

func sameRefs(a, b []model.EntityRef) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[model.EntityRef]int, len(a))
	for _, r := range a {
		set[r]++
	}
	for _, r := range b {
		if set[r] == 0 {
			return false
		}
		set[r]--
	}
	return true
}

// Children returns the distinct children of one kind listed by parent.
func (m *IntegrityMaintainer) Children(ctx context.Context, parent model.EntityRef, kind model.EntityKind) ([]uint64, error) {
	ids, err := m.store.Children(ctx, parent, kind)
	if err != nil {
		return nil, apperr.Internal("read back-references", err)
	}
	return ids, nil
}

// CountChildren counts the distinct children of one kind listed by parent.
func (m *IntegrityMaintainer) CountChildren(ctx context.Context, parent model.EntityRef, kind model.EntityKind) (int, error) {
	n, err := m.store.CountChildren(ctx, parent, kind)
	if err != nil {
		return 0, apperr.Internal("count back-references", err)
	}
	return n, nil
}

// PruneDuplicates removes duplicate links left by overlapping writers.
func (m *IntegrityMaintainer) PruneDuplicates(ctx context.Context) (int64, error) {
	n, err := m.store.PruneDuplicates(ctx)
	if err != nil {
		return 0, apperr.Internal("prune back-references", err)
	}
	if n > 0 {
		log.Printf("cascade: pruned %d duplicate back-reference(s)", n)
	}
	return n, nil
}

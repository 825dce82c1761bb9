package model

import "strconv"

// EntityKind names a catalog or booking entity that takes part in
// denormalized parent/child back-references.
type EntityKind string

const (
	KindMovie       EntityKind = "movie"
	KindPerson      EntityKind = "person"
	KindGenre       EntityKind = "genre"
	KindTheatre     EntityKind = "theatre"
	KindScreen      EntityKind = "screen"
	KindSeat        EntityKind = "seat"
	KindShowing     EntityKind = "showing"
	KindSeatMap     EntityKind = "seat_map"
	KindMovieCredit EntityKind = "movie_credit"
)

// EntityRef points at one entity by kind and id.
type EntityRef struct {
	Kind EntityKind
	ID   uint64
}

// Ref is shorthand for building an EntityRef.
func Ref(kind EntityKind, id uint64) EntityRef { return EntityRef{Kind: kind, ID: id} }

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + strconv.FormatUint(r.ID, 10)
}

// BackRef is one denormalized parent -> child link.
type BackRef struct {
	Parent EntityRef
	Child  EntityRef
}

package model

import "time"

// Movie is the catalog entry for a film.  The booking core only reads it
// when building reservation snapshots.
type Movie struct {
	ID              uint64    // movies.id
	Title           string    // movies.title
	DurationMinutes uint32    // movies.duration_minutes
	Rating          string    // movies.rating (may be empty)
	CreatedAt       time.Time // movies.created_at
	UpdatedAt       time.Time // movies.updated_at
}

// Theatre represents a cinema venue owned by a user.  A theatre
// contains one or more screens.
//
// Fields:
//
//	ID        – primary key identifier.
//	OwnerID   – user ID of the theatre owner.
//	Name      – display name.
//	Address   – street address printed on tickets.
//	Timezone  – IANA zone used to render showing times.
type Theatre struct {
	ID        uint64    // theatres.id
	OwnerID   uint64    // theatres.owner_id
	Name      string    // theatres.name
	Address   string    // theatres.address
	Timezone  string    // theatres.timezone
	CreatedAt time.Time // theatres.created_at
	UpdatedAt time.Time // theatres.updated_at
}

// Screen is an auditorium inside a theatre.
type Screen struct {
	ID        uint64    // screens.id
	TheatreID uint64    // screens.theatre_id
	Name      string    // screens.name
	Format    string    // screens.format (2D, 3D, IMAX ...)
	IsActive  bool      // screens.is_active
	CreatedAt time.Time // screens.created_at
	UpdatedAt time.Time // screens.updated_at
}

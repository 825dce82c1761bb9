package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// ReservationStore persists reservations.  UpdateStatus must be a
// conditional write that reports whether it moved the row.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListByShowing(ctx context.Context, showingID uint64) ([]model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.ReservationStatus, at time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// ShowingStore is what the lifecycle needs from showings: lookups and the
// conditional general-admission counter.
type ShowingStore interface {
	ShowingReader
	ReserveCapacity(ctx context.Context, id uint64, n uint32) (bool, error)
	ReleaseCapacity(ctx context.Context, id uint64, n uint32) error
}

// EventPublisher delivers lifecycle events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Defaults for ReservationService options.
const (
	DefaultHoldTTL  = 10 * time.Minute
	DefaultCurrency = "USD"
)

// ReservationService orchestrates creation, checkout, cancellation and
// expiry of reservations.  It holds no locks; all coordination between
// concurrent requests happens in conditional single-row writes.
type ReservationService struct {
	reservations ReservationStore
	showings     ShowingStore
	seatMaps     SeatMapStore
	catalog      CatalogReader
	locker       *SeatLocker
	snapshots    *SnapshotFactory
	publisher    EventPublisher
	holdTTL      time.Duration
	currency     string
	now          func() time.Time
	newToken     func() (string, error)
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithHoldTTL sets how long a RESERVED reservation holds its seats.
func WithHoldTTL(d time.Duration) Option {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithCurrency sets the ISO currency recorded on new reservations.
func WithCurrency(c string) Option {
	return func(s *ReservationService) {
		if c != "" {
			s.currency = c
		}
	}
}

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *ReservationService) { s.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// NewReservationService wires the lifecycle service.
func NewReservationService(
	reservations ReservationStore,
	showings ShowingStore,
	seatMaps SeatMapStore,
	catalog CatalogReader,
	opts ...Option,
) *ReservationService {
	s := &ReservationService{
		reservations: reservations,
		showings:     showings,
		seatMaps:     seatMaps,
		catalog:      catalog,
		holdTTL:      DefaultHoldTTL,
		currency:     DefaultCurrency,
		now:          time.Now,
		newToken:     func() (string, error) { return randomToken(16) },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locker = NewSeatLocker(seatMaps)
	s.snapshots = NewSnapshotFactory(showings, catalog)
	s.snapshots.now = s.now
	return s
}

// Locker exposes the seat locker used by the service.
func (s *ReservationService) Locker() *SeatLocker { return s.locker }

// CreateReservationInput is the validated request to book a showing.
type CreateReservationInput struct {
	UserID      uint64
	ShowingID   uint64
	Type        model.ReservationType
	SeatMapIDs  []uint64
	TicketCount uint32
	Notes       *string
}

// hold is what a reservation keeps out of stock until it is paid or cancelled.
type hold struct {
	showingID  uint64
	token      string
	seatMapIDs []uint64
	gaPlaces   uint32
}

// Create books a showing.  Reserved seating locks the selected seat-map
// entries; general admission takes places from the showing's capacity
// counter.  The hold is released again if the snapshot or the insert fails.
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (*model.Reservation, error) {
	ids, err := validateSelection(in)
	if err != nil {
		return nil, err
	}
	showing, err := s.showings.GetByID(ctx, in.ShowingID)
	if err != nil {
		return nil, lookupErr("showing", err)
	}
	if !showing.Bookable() {
		return nil, apperr.NotBookable(string(showing.Status))
	}

	var (
		h       = hold{showingID: showing.ID}
		entries []model.SeatMapEntry
		price   int64
		count   = in.TicketCount
	)
	switch in.Type {
	case model.ReservedSeats:
		if err := s.checkSelection(ctx, showing.ID, ids); err != nil {
			return nil, err
		}
		lock, err := s.locker.LockSeats(ctx, ids)
		if err != nil {
			return nil, err
		}
		h.token, h.seatMapIDs, entries = lock.Token, ids, lock.Entries
		for _, e := range entries {
			price += e.EffectivePriceCents()
		}
		count = uint32(len(ids))
	case model.GeneralAdmission:
		ok, err := s.showings.ReserveCapacity(ctx, showing.ID, in.TicketCount)
		if err != nil {
			return nil, apperr.Internal("reserve capacity", err)
		}
		if !ok {
			return nil, apperr.CapacityExhausted(in.TicketCount)
		}
		h.gaPlaces = in.TicketCount
		if h.token, err = s.newToken(); err != nil {
			s.releaseHold(ctx, h)
			return nil, apperr.Internal("generate lock token", err)
		}
		price = showing.BasePriceCents * int64(in.TicketCount)
	}

	snap, err := s.snapshots.CreateSnapshot(ctx, showing.ID, entries)
	if err != nil {
		s.releaseHold(ctx, h)
		return nil, err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		s.releaseHold(ctx, h)
		return nil, apperr.Internal("encode snapshot", err)
	}

	now := s.now().UTC()
	res := &model.Reservation{
		UserID:         in.UserID,
		ShowingID:      showing.ID,
		Type:           in.Type,
		SeatMapIDs:     h.seatMapIDs,
		TicketCount:    count,
		PricePaidCents: price,
		Currency:       s.currency,
		Status:         model.ReservationReserved,
		LockToken:      h.token,
		Snapshot:       raw,
		Notes:          in.Notes,
		DateReserved:   now,
		ExpiresAt:      now.Add(s.holdTTL),
	}
	if err := s.reservations.Create(ctx, res); err != nil {
		s.releaseHold(ctx, h)
		return nil, apperr.Internal("persist reservation", err)
	}

	if len(h.seatMapIDs) > 0 {
		n, err := s.locker.Promote(ctx, h.token, h.seatMapIDs)
		if err != nil || n != int64(len(h.seatMapIDs)) {
			// Seats stay PENDING under the reservation's token, which every
			// later transition accepts, so the booking itself is intact.
			log.Printf("booking: promote reservation %d moved %d/%d seats: %v", res.ID, n, len(h.seatMapIDs), err)
		}
	}
	s.publish(ctx, queue.EventReservationCreated, res, snap, "")
	return res, nil
}

// validateSelection enforces the type/selection pairing and returns the
// de-duplicated seat-map IDs.
func validateSelection(in CreateReservationInput) ([]uint64, error) {
	if in.UserID == 0 {
		return nil, apperr.Validation("user is required")
	}
	if in.ShowingID == 0 {
		return nil, apperr.Validation("showing_id is required")
	}
	ids := uniqueIDs(in.SeatMapIDs)
	switch in.Type {
	case model.ReservedSeats:
		if len(ids) == 0 {
			return nil, apperr.InvalidReservationType("reserved seating requires a non-empty seat selection")
		}
		if in.TicketCount != 0 && int(in.TicketCount) != len(ids) {
			return nil, apperr.InvalidReservationType("ticket_count must match the number of selected seats")
		}
	case model.GeneralAdmission:
		if len(in.SeatMapIDs) > 0 {
			return nil, apperr.InvalidReservationType("general admission cannot select seats")
		}
		if in.TicketCount == 0 {
			return nil, apperr.Validation("ticket_count must be at least 1")
		}
	default:
		return nil, apperr.InvalidReservationType("unknown reservation type " + string(in.Type))
	}
	return ids, nil
}

// checkSelection verifies every selected entry exists and belongs to the showing.
func (s *ReservationService) checkSelection(ctx context.Context, showingID uint64, ids []uint64) error {
	entries, err := s.seatMaps.ListByIDs(ctx, ids)
	if err != nil {
		return apperr.Internal("load seat maps", err)
	}
	if len(entries) != len(ids) {
		return apperr.SourceNotFound("seat map")
	}
	for _, e := range entries {
		if e.ShowingID != showingID {
			return apperr.InvalidReservationType("seat selection does not belong to the showing").
				WithField("seat_map_id", e.ID)
		}
	}
	return nil
}

// releaseHold gives back seats or capacity after a failed create.
func (s *ReservationService) releaseHold(ctx context.Context, h hold) {
	ctx = context.WithoutCancel(ctx)
	if len(h.seatMapIDs) > 0 {
		if _, err := s.locker.ReleaseSeats(ctx, h.token, h.seatMapIDs); err != nil {
			log.Printf("booking: release of seat maps %v after failed create: %v", h.seatMapIDs, err)
		}
	}
	if h.gaPlaces > 0 {
		if err := s.showings.ReleaseCapacity(ctx, h.showingID, h.gaPlaces); err != nil {
			log.Printf("booking: release of %d GA places on showing %d: %v", h.gaPlaces, h.showingID, err)
		}
	}
}

func (s *ReservationService) load(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ReservationNotFound()
		}
		return nil, apperr.Internal("load reservation", err)
	}
	return res, nil
}

func (s *ReservationService) loadOwned(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, apperr.UnauthorizedBooking()
	}
	return res, nil
}

// Get returns one of the caller's reservations.
func (s *ReservationService) Get(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	return s.loadOwned(ctx, id, userID)
}

// ListByUser returns the caller's reservations, newest first.
func (s *ReservationService) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list reservations", err)
	}
	return out, nil
}

// ListByShowingForOwner lists a showing's reservations for the owner of its
// theatre.
func (s *ReservationService) ListByShowingForOwner(ctx context.Context, showingID, ownerID uint64) ([]model.Reservation, error) {
	showing, err := s.showings.GetByID(ctx, showingID)
	if err != nil {
		return nil, lookupErr("showing", err)
	}
	theatre, err := s.catalog.GetTheatre(ctx, showing.TheatreID)
	if err != nil {
		return nil, lookupErr("theatre", err)
	}
	if theatre.OwnerID != ownerID {
		return nil, apperr.UnauthorizedBooking()
	}
	out, err := s.reservations.ListByShowing(ctx, showingID)
	if err != nil {
		return nil, apperr.Internal("list reservations", err)
	}
	return out, nil
}

// Checkout pays a RESERVED reservation: its seats move to SOLD and the
// reservation to PAID.
func (s *ReservationService) Checkout(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if res.Status != model.ReservationReserved {
		return nil, apperr.InvalidReservationState(string(res.Status), string(model.ReservationPaid))
	}
	if res.Expired(s.now()) {
		return nil, apperr.ReservationExpired()
	}

	if len(res.SeatMapIDs) > 0 {
		n, err := s.locker.Sell(ctx, res.LockToken, res.SeatMapIDs)
		if err != nil {
			return nil, err
		}
		if n != int64(len(res.SeatMapIDs)) {
			// Only a concurrent cancel releases seats under this token.
			// Finish that release and report the state that won.
			s.releaseSeats(ctx, res)
			return nil, s.stateConflict(ctx, res.ID, model.ReservationPaid)
		}
	}

	ok, err := s.reservations.UpdateStatus(ctx, res.ID, model.ReservationReserved, model.ReservationPaid, s.now())
	if err != nil {
		return nil, apperr.Internal("mark reservation paid", err)
	}
	if !ok {
		cur, lerr := s.load(ctx, res.ID)
		if lerr == nil && cur.Status == model.ReservationCancelled {
			// Cancelled between our sale and our write; undo the sale.
			s.releaseSeats(ctx, cur)
		}
		return nil, s.stateConflict(ctx, res.ID, model.ReservationPaid)
	}
	res.Status = model.ReservationPaid
	s.publish(ctx, queue.EventReservationPaid, res, nil, "")
	return res, nil
}

func (s *ReservationService) stateConflict(ctx context.Context, id uint64, to model.ReservationStatus) error {
	cur, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return apperr.InvalidReservationState(string(cur.Status), string(to))
}

func (s *ReservationService) releaseSeats(ctx context.Context, res *model.Reservation) {
	if len(res.SeatMapIDs) == 0 {
		return
	}
	if _, err := s.locker.ReleaseSeats(context.WithoutCancel(ctx), res.LockToken, res.SeatMapIDs); err != nil {
		log.Printf("booking: release seats of reservation %d: %v", res.ID, err)
	}
}

// Cancel cancels one of the caller's reservations.  Cancelling an already
// CANCELLED reservation returns it unchanged apart from retrying the release
// of any seats still held under its token.
func (s *ReservationService) Cancel(ctx context.Context, id, userID uint64) (*model.Reservation, error) {
	res, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, res, false, "cancelled by user")
}

// Release is the system-level cancel used by the expiry sweep.  It only
// acts on RESERVED reservations; any other state is returned unchanged, so
// it is safe to call repeatedly and concurrently with user requests.
func (s *ReservationService) Release(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, res, true, "hold expired")
}

// cancel flips the status first.  The conditional write decides which of
// several racing callers owns the cancellation, and only that caller gives
// back seats or capacity.
func (s *ReservationService) cancel(ctx context.Context, res *model.Reservation, heldOnly bool, reason string) (*model.Reservation, error) {
	for {
		if res.Status == model.ReservationCancelled {
			// An earlier give-back may have failed after the flip committed.
			// The token-scoped release matches nothing once the seats are
			// back or rebooked under another token, so repeating it is safe.
			if res.Type == model.ReservedSeats {
				if err := s.giveBack(ctx, res); err != nil {
					return nil, err
				}
			}
			return res, nil
		}
		if heldOnly && res.Status != model.ReservationReserved {
			return res, nil
		}
		if !model.CanTransitionReservation(res.Status, model.ReservationCancelled) {
			return nil, apperr.InvalidReservationState(string(res.Status), string(model.ReservationCancelled))
		}
		now := s.now().UTC()
		ok, err := s.reservations.UpdateStatus(ctx, res.ID, res.Status, model.ReservationCancelled, now)
		if err != nil {
			return nil, apperr.Internal("cancel reservation", err)
		}
		if !ok {
			// Lost a race; re-read and decide again.  Statuses only move
			// forward, so this loops at most twice.
			if res, err = s.load(ctx, res.ID); err != nil {
				return nil, err
			}
			continue
		}

		res.Status = model.ReservationCancelled
		res.DateCancelled = &now
		if err := s.giveBack(ctx, res); err != nil {
			return nil, err
		}
		s.publish(ctx, queue.EventReservationCancelled, res, nil, reason)
		return res, nil
	}
}

func (s *ReservationService) giveBack(ctx context.Context, res *model.Reservation) error {
	ctx = context.WithoutCancel(ctx)
	switch res.Type {
	case model.ReservedSeats:
		if _, err := s.locker.ReleaseSeats(ctx, res.LockToken, res.SeatMapIDs); err != nil {
			log.Printf("booking: reservation %d cancelled but seats %v not released: %v", res.ID, res.SeatMapIDs, err)
			return err
		}
	case model.GeneralAdmission:
		if err := s.showings.ReleaseCapacity(ctx, res.ShowingID, res.TicketCount); err != nil {
			log.Printf("booking: reservation %d cancelled but %d GA places not returned: %v", res.ID, res.TicketCount, err)
			return apperr.Internal("release capacity", err)
		}
	}
	return nil
}

// ExpireStale releases up to limit RESERVED reservations whose hold has
// lapsed and returns how many it cancelled.  A failure on one reservation
// does not stop the rest; all failures are joined into the returned error.
func (s *ReservationService) ExpireStale(ctx context.Context, limit int) (int, error) {
	ids, err := s.reservations.ListExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, apperr.Internal("list expired reservations", err)
	}
	var (
		released int
		errs     []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := s.Release(ctx, id)
		if err != nil {
			log.Printf("sweep: release reservation %d: %v", id, err)
			errs = append(errs, err)
			continue
		}
		if res.Status == model.ReservationCancelled {
			released++
		}
	}
	return released, errors.Join(errs...)
}

func (s *ReservationService) publish(ctx context.Context, eventType string, res *model.Reservation, snap *model.ReservationSnapshot, reason string) {
	if s.publisher == nil {
		return
	}
	ev := queue.NewEvent(eventType, s.now())
	ev.ReservationID = res.ID
	ev.UserID = res.UserID
	ev.ShowingID = res.ShowingID
	ev.Type = string(res.Type)
	ev.Status = string(res.Status)
	ev.TicketCount = res.TicketCount
	ev.PricePaidCents = res.PricePaidCents
	ev.Currency = res.Currency
	ev.Reason = reason
	if snap == nil {
		var decoded model.ReservationSnapshot
		if err := json.Unmarshal(res.Snapshot, &decoded); err == nil {
			snap = &decoded
		}
	}
	if snap != nil {
		ev.MovieTitle = snap.Movie.Title
		ev.TheatreName = snap.Theatre.Name
		for _, seat := range snap.Seats {
			ev.SeatLabels = append(ev.SeatLabels, seat.Label)
		}
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("booking: publish %s for reservation %d: %v", eventType, res.ID, err)
	}
}

package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/registerhq/retailcore-backend/pkg/errors"
	"github.com/registerhq/retailcore-backend/pkg/redis"
)

// DefaultParkTTL bounds how long a suspended cart waits before the snapshot
// expires on its own.
const DefaultParkTTL = 24 * time.Hour

type snapshotStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ParkedCartKey(id string) string
}

// Snapshot is a parked cart: terminal-held state frozen until the cashier
// resumes or discards it. Not subject to any ledger invariant.
type Snapshot struct {
	ID         uuid.UUID    `json:"id"`
	LocationID uuid.UUID    `json:"location_id"`
	ActorID    uuid.UUID    `json:"actor_id"`
	CustomerID *uuid.UUID   `json:"customer_id,omitempty"`
	Lines      []Line       `json:"lines"`
	Discount   DiscountSpec `json:"discount"`
	Label      string       `json:"label,omitempty"`
	ParkedAt   time.Time    `json:"parked_at"`
}

// ParkInput captures the cart state to suspend.
type ParkInput struct {
	LocationID uuid.UUID
	ActorID    uuid.UUID
	CustomerID *uuid.UUID
	Lines      []Line
	Discount   DiscountSpec
	Label      string
}

// ParkService suspends carts as redis snapshots keyed by a generated id.
type ParkService struct {
	store snapshotStore
	ttl   time.Duration
}

// NewParkService wires the parked-cart store. A non-positive TTL falls back
// to DefaultParkTTL.
func NewParkService(store snapshotStore, ttl time.Duration) (*ParkService, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	if ttl <= 0 {
		ttl = DefaultParkTTL
	}
	return &ParkService{store: store, ttl: ttl}, nil
}

// Park serializes the cart and returns the generated snapshot id.
func (s *ParkService) Park(ctx context.Context, input ParkInput) (*Snapshot, error) {
	if input.LocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot park an empty cart")
	}

	snapshot := Snapshot{
		ID:         uuid.New(),
		LocationID: input.LocationID,
		ActorID:    input.ActorID,
		CustomerID: input.CustomerID,
		Lines:      input.Lines,
		Discount:   input.Discount,
		Label:      input.Label,
		ParkedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serialize cart snapshot")
	}
	key := s.store.ParkedCartKey(snapshot.ID.String())
	if err := s.store.Set(ctx, key, payload, s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store cart snapshot")
	}
	return &snapshot, nil
}

// Resume returns the snapshot and removes it, so a parked cart can only be
// picked up once.
func (s *ParkService) Resume(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	snapshot, key, err := s.load(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Del(ctx, key); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart snapshot")
	}
	return snapshot, nil
}

// Peek returns the snapshot without consuming it.
func (s *ParkService) Peek(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	snapshot, _, err := s.load(ctx, cartID)
	return snapshot, err
}

// Discard removes a parked cart without returning it.
func (s *ParkService) Discard(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if err := s.store.Del(ctx, s.store.ParkedCartKey(cartID.String())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart snapshot")
	}
	return nil
}

func (s *ParkService) load(ctx context.Context, cartID uuid.UUID) (*Snapshot, string, error) {
	if cartID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	key := s.store.ParkedCartKey(cartID.String())
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "parked cart not found").
				WithDetails(map[string]any{"cart_id": cartID.String()})
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart snapshot")
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode cart snapshot")
	}
	return &snapshot, key, nil
}

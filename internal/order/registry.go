package order

import (
	"sort"

	"github.com/shopspring/decimal"

	"MatchCore/internal/invariant"
)

// Registry owns every open order, indexed by id and by owner.
type Registry struct {
	byID   map[int64]*Order
	byUser map[int64]map[int64]*Order
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int64]*Order),
		byUser: make(map[int64]map[int64]*Order),
	}
}

// CreateOrder builds a PENDING order and registers it in both indexes.
// Funds must already be frozen by the caller. A reused id is an invariant violation.
func (r *Registry) CreateOrder(id, sequenceID, userID int64, dir Direction, price, quantity decimal.Decimal, ts int64) (*Order, error) {
	if _, exists := r.byID[id]; exists {
		return nil, invariant.Violationf("duplicate_order_id", "order %d already registered", id)
	}

	o := &Order{
		ID:               id,
		SequenceID:       sequenceID,
		UserID:           userID,
		Direction:        dir,
		Price:            price,
		Quantity:         quantity,
		UnfilledQuantity: quantity,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}

	r.byID[id] = o
	user, ok := r.byUser[userID]
	if !ok {
		user = make(map[int64]*Order)
		r.byUser[userID] = user
	}
	user[id] = o

	return o, nil
}

// RemoveOrder deletes the order from both indexes. Absence from either
// index means clearing and the registry diverged.
func (r *Registry) RemoveOrder(id int64) error {
	o, ok := r.byID[id]
	if !ok {
		return invariant.Violationf("order_not_registered", "order %d not in id index", id)
	}
	user := r.byUser[o.UserID]
	if _, ok := user[id]; !ok {
		return invariant.Violationf("order_not_registered",
			"order %d not in user index for user %d", id, o.UserID)
	}

	delete(r.byID, id)
	delete(user, id)
	if len(user) == 0 {
		delete(r.byUser, o.UserID)
	}
	return nil
}

func (r *Registry) GetOrder(id int64) (*Order, bool) {
	o, ok := r.byID[id]
	return o, ok
}

// GetUserOrders returns the user's open orders ordered by id.
func (r *Registry) GetUserOrders(userID int64) []*Order {
	user := r.byUser[userID]
	out := make([]*Order, 0, len(user))
	for _, o := range user {
		out = append(out, o)
	}
	sortByID(out)
	return out
}

func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns every open order ordered by id.
func (r *Registry) All() []*Order {
	out := make([]*Order, 0, len(r.byID))
	for _, o := range r.byID {
		out = append(out, o)
	}
	sortByID(out)
	return out
}

func sortByID(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
}

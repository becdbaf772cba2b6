package orders

import "fmt"

// ValidationError covers malformed caller input: empty orders, unknown
// products, out-of-range fields. Nothing is mutated when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InsufficientStockError identifies the first product whose stock could not
// cover the requested quantity. The placement transaction is rolled back in
// full before it is returned.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// InvalidTransitionError is returned when a lifecycle action is attempted
// against an order that is not in a state that allows it. The order is left
// untouched.
type InvalidTransitionError struct {
	OrderID   int64
	Current   Status
	Attempted Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot move from %s to %s", e.OrderID, e.Current, e.Attempted)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// PersistenceError is the only failure whose underlying cause is hidden from
// the caller; the repo logs it server-side before returning this.
type PersistenceError struct {
	Op string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed", e.Op)
}

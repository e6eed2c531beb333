package tracker

import (
	"fmt"

	"github.com/BearBump/ColdTrack/internal/statemachine"
	"github.com/pkg/errors"
)

var (
	// ErrShipmentNotFound — вызывающий указал несуществующее отправление.
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrTimeout is returned when the caller's deadline expires while waiting
	// for the shipment's serialization lock. No durable effect has happened.
	ErrTimeout = errors.New("timed out waiting for shipment lock")

	// ErrPersistence is surfaced after the single internal retry also failed.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidState means the stored status is outside the enumeration.
	// Under correct use this never happens; treated as a severe anomaly.
	ErrInvalidState = errors.New("invalid stored status")
)

// RejectionError is an expected business-rule rejection from the status
// machine. Not logged as an error; the API layer maps Reason to a status code.
type RejectionError struct {
	Reason    statemachine.Reason
	Current   string
	Requested string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s: %s", e.Current, e.Requested, e.Reason)
}

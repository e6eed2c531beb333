package statemachine

import "github.com/BearBump/ColdTrack/internal/models"

// Reason classifies why a transition was rejected.
type Reason string

const (
	ReasonTerminalState         Reason = "TERMINAL_STATE"
	ReasonIllegalEdge           Reason = "ILLEGAL_EDGE"
	ReasonInsufficientPrivilege Reason = "INSUFFICIENT_PRIVILEGE"
	ReasonInvalidState          Reason = "INVALID_STATE"
)

// Outcome is the result of validating one transition request.
// Accepted=true означает, что координатор может записывать событие.
type Outcome struct {
	Accepted bool
	Status   string
	NoOp     bool
	Reason   Reason
}

// Rules maps an actor role to the set of statuses it may set.
// Read-only configuration; the machine never mutates it.
type Rules map[string]map[string]bool

// DefaultRules mirrors the production permission table: customers may only
// cancel, sensors may not change status at all, staff and admin may set
// anything the edge set allows.
func DefaultRules() Rules {
	all := map[string]bool{
		models.StatusCreated:    true,
		models.StatusProcessing: true,
		models.StatusInTransit:  true,
		models.StatusDelivered:  true,
		models.StatusCancelled:  true,
	}
	return Rules{
		models.RoleCustomer: {models.StatusCancelled: true},
		models.RoleStaff:    all,
		models.RoleAdmin:    all,
		models.RoleSensor:   {},
	}
}

// rank orders the delivery chain created → processing → in-transit →
// delivered. A transition moves forward along the chain; skipping stages is
// allowed (checkpoints may arrive out of band), moving backward is not.
// Cancellation sits outside the chain and is reachable from any non-terminal
// state.
var rank = map[string]int{
	models.StatusCreated:    0,
	models.StatusProcessing: 1,
	models.StatusInTransit:  2,
	models.StatusDelivered:  3,
}

type Machine struct {
	rules Rules
}

func New(rules Rules) *Machine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Machine{rules: rules}
}

// ValidateTransition is a pure decision function: no durable effects happen
// here, the coordinator applies accepted outcomes under its per-shipment lock.
func (m *Machine) ValidateTransition(current, requested, role string) Outcome {
	if !models.KnownStatus(current) || !models.KnownStatus(requested) {
		return Outcome{Reason: ReasonInvalidState}
	}

	// Самопереход — идемпотентное подтверждение статуса, всегда допустим.
	if current == requested {
		return Outcome{Accepted: true, Status: requested, NoOp: true}
	}

	if models.TerminalStatus(current) {
		return Outcome{Reason: ReasonTerminalState}
	}
	if requested != models.StatusCancelled && rank[requested] <= rank[current] {
		return Outcome{Reason: ReasonIllegalEdge}
	}
	if !m.rules[role][requested] {
		return Outcome{Reason: ReasonInsufficientPrivilege}
	}
	return Outcome{Accepted: true, Status: requested}
}

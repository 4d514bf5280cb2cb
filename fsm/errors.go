package fsm

import (
	"fmt"

	"github.com/sarchlab/tlmbus/protocol"
)

// IllegalTransitionError is returned when a transaction reaches a time point
// that is not legal from its current state.
type IllegalTransitionError struct {
	TxnID     string
	Payload   *protocol.Payload
	State     State
	TimePoint TimePoint
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transaction %s (%s): illegal time point %s in state %s",
		e.TxnID, e.Payload, e.TimePoint, e.State)
}

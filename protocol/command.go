package protocol

// Command is the kind of access a transaction performs.
type Command int

// Supported commands. Ignore is used by snoops and other dataless messages.
const (
	Read Command = iota
	Write
	Ignore
)

func (c Command) String() string {
	switch c {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Ignore:
		return "IGNORE"
	}

	return "UNKNOWN_COMMAND"
}

// SyncStatus is the value returned by a transport call.
type SyncStatus int

// TLM style synchronization status.
const (
	// Accepted means the callee took the phase and will answer later.
	Accepted SyncStatus = iota
	// Updated means the callee changed the phase argument in place.
	Updated
	// Completed means the callee finished the whole transaction.
	Completed
)

func (s SyncStatus) String() string {
	switch s {
	case Accepted:
		return "ACCEPTED"
	case Updated:
		return "UPDATED"
	case Completed:
		return "COMPLETED"
	}

	return "UNKNOWN_STATUS"
}

// RespStatus is the response code carried by the final response beat.
type RespStatus int

// AXI style response codes.
const (
	Okay RespStatus = iota
	ExOkay
	SlvErr
	DecErr
)

func (r RespStatus) String() string {
	switch r {
	case Okay:
		return "OKAY"
	case ExOkay:
		return "EXOKAY"
	case SlvErr:
		return "SLVERR"
	case DecErr:
		return "DECERR"
	}

	return "UNKNOWN_RESP"
}

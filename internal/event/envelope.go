package event

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeOrderRequest
	EventTypeOrderCancel
	EventTypeTransfer
)

// EventEnvelope records one applied event in the hash chain
type EventEnvelope struct {
	// Global monotonic sequence assigned by the upstream sequencer
	Sequence int64

	// Event type discriminator
	EventType EventType

	// Event time in epoch microseconds (NOT wall-clock at apply)
	Timestamp int64

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the closed set of inputs the trading engine accepts.
// Only types in this package implement it.
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// SourceSequence returns the sequencer-assigned ordering key
	SourceSequence() int64

	// EventTime returns the event timestamp in epoch microseconds
	EventTime() int64

	isEvent()
}

func (et EventType) String() string {
	switch et {
	case EventTypeOrderRequest:
		return "OrderRequest"
	case EventTypeOrderCancel:
		return "OrderCancel"
	case EventTypeTransfer:
		return "Transfer"
	default:
		return "Unknown"
	}
}

package plinkbgen

// encodeState tracks where the Encoder is in its single pass over the call
// stream.
type encodeState uint32

const (
	stateIdle encodeState = iota
	stateHeaderWritten
	stateColumnOpen
	stateColumnClosed
	stateFinalized
)

func (s encodeState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateHeaderWritten:
		return "HeaderWritten"
	case stateColumnOpen:
		return "ColumnOpen"
	case stateColumnClosed:
		return "ColumnClosed"
	case stateFinalized:
		return "Finalized"
	}

	return "Illegal selection"
}

package activitymodel

// ConnectionStatus mirrors the Direct Line connection states.
type ConnectionStatus int

const (
	Uninitialized ConnectionStatus = iota
	Connecting
	Online
	ExpiredToken
	FailedToConnect
	Ended
)

func (s ConnectionStatus) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Connecting:
		return "connecting"
	case Online:
		return "online"
	case ExpiredToken:
		return "expired_token"
	case FailedToConnect:
		return "failed_to_connect"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition to Online is possible.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ExpiredToken || s == FailedToConnect || s == Ended
}

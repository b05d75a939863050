package session

import "fmt"

type State uint32

const (
	StateInit State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Terminal reports whether no further frames are processed in s.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

package hdlc

import (
	dlms "github.com/openmetering/godlms"
)

// State is the connection state of an HDLC session.
type State uint8

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
	StateClosing
)

var stateNames = map[State]string{
	StateClosed:     "closed",
	StateConnecting: "connecting",
	StateConnected:  "connected",
	StateClosing:    "closing",
}

func (s State) String() string {
	return stateNames[s]
}

// validTransitions lists every allowed (from, to) pair. Self
// transitions on Closed and Connected cover idempotent open/close
// handling.
var validTransitions = map[[2]State]bool{
	{StateClosed, StateConnecting}:     true,
	{StateConnecting, StateConnected}:  true,
	{StateConnecting, StateClosed}:     true, // timeout or DM
	{StateConnected, StateClosing}:     true,
	{StateConnected, StateClosed}:      true, // error
	{StateClosing, StateClosed}:        true,
	{StateClosed, StateClosed}:         true,
	{StateConnected, StateConnected}:   true,
}

// ValidateTransition checks a state change against the transition
// table before it is executed.
func ValidateTransition(from, to State) error {
	if !validTransitions[[2]State{from, to}] {
		return dlms.Errorf(dlms.KindInvalidData, "hdlc: invalid transition %s -> %s", from, to)
	}
	return nil
}

// CanSendInformation reports whether I frames may be sent.
func (s State) CanSendInformation() bool {
	return s == StateConnected
}

// CanSendControl reports whether control frames (SNRM, DISC) may be
// sent.
func (s State) CanSendControl() bool {
	return s != StateClosing
}

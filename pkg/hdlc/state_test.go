package hdlc

import (
	"testing"

	dlms "github.com/openmetering/godlms"
	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	allowed := [][2]State{
		{StateClosed, StateConnecting},
		{StateConnecting, StateConnected},
		{StateConnecting, StateClosed},
		{StateConnected, StateClosing},
		{StateConnected, StateClosed},
		{StateClosing, StateClosed},
	}
	for _, pair := range allowed {
		assert.Nil(t, ValidateTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestInvalidTransitions(t *testing.T) {
	invalid := [][2]State{
		{StateClosed, StateConnected},
		{StateClosed, StateClosing},
		{StateConnecting, StateClosing},
		{StateClosing, StateConnected},
		{StateClosing, StateConnecting},
		{StateConnected, StateConnecting},
	}
	for _, pair := range invalid {
		err := ValidateTransition(pair[0], pair[1])
		assert.True(t, dlms.IsKind(err, dlms.KindInvalidData), "%s -> %s", pair[0], pair[1])
	}
}

// Every transition accepted by ValidateTransition must be listed in
// the table, so enumerate the full state product.
func TestTransitionsAreSubsetOfTable(t *testing.T) {
	listed := map[[2]State]bool{}
	for pair := range validTransitions {
		listed[pair] = true
	}
	states := []State{StateClosed, StateConnecting, StateConnected, StateClosing}
	for _, from := range states {
		for _, to := range states {
			if ValidateTransition(from, to) == nil {
				assert.True(t, listed[[2]State{from, to}], "%s -> %s accepted but not listed", from, to)
			}
		}
	}
}

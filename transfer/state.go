// SPDX-License-Identifier: EPL-2.0

package transfer

import "fmt"

// State of a Loop. A session moves Idle → Negotiated → Running, then
// either back to Idle (through Draining for bounded playback) or to
// Aborted on a fatal error.
type State uint8

const (
	Idle State = iota
	Negotiated
	Running
	Draining
	Aborted
)

var stateNames = [...]string{"idle", "negotiated", "running", "draining", "aborted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervisor

// State represents the lifecycle state of a supervised process.
type State int

const (
	// NotStarted is the initial state before the first Start call.
	NotStarted State = iota
	// Starting means launch validation and process creation are in progress.
	Starting
	// Running means the child process is alive.
	Running
	// Stopping means a graceful termination request has been issued.
	Stopping
	// StartFailed is terminal for a run: launch validation failed and no
	// process was ever created.
	StartFailed
	// ExitedSuccessfully is terminal for a run: the process exited with code 0.
	ExitedSuccessfully
	// ExitedWithError is terminal for a run: the process exited with a
	// non-zero code.
	ExitedWithError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case StartFailed:
		return "StartFailed"
	case ExitedSuccessfully:
		return "ExitedSuccessfully"
	case ExitedWithError:
		return "ExitedWithError"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state ends a run. Terminal states have no
// outgoing edge except the restart edge back to Starting.
func (s State) IsTerminal() bool {
	switch s {
	case StartFailed, ExitedSuccessfully, ExitedWithError:
		return true
	default:
		return false
	}
}

// Transition is a single legal edge in the state graph.
type Transition struct {
	From State
	To   State
}

// transitions is the complete set of legal edges. It is consulted before
// every state change and rendered by Graph.
var transitions = []Transition{
	{NotStarted, Starting},
	{Starting, Running},
	{Starting, StartFailed},
	{Running, Stopping},
	{Running, ExitedSuccessfully},
	{Running, ExitedWithError},
	{Stopping, ExitedSuccessfully},
	{Stopping, ExitedWithError},

	// Restart edges: any terminal state may begin a fresh run.
	{StartFailed, Starting},
	{ExitedSuccessfully, Starting},
	{ExitedWithError, Starting},
}

// States returns all declared states in definition order.
func States() []State {
	return []State{
		NotStarted,
		Starting,
		Running,
		Stopping,
		StartFailed,
		ExitedSuccessfully,
		ExitedWithError,
	}
}

// Transitions returns a copy of the legal edge set in declaration order.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to State) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

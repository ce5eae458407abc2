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

// waiterRegistry tracks outstanding "notify me when state X becomes current"
// requests. It is not safe for concurrent use on its own; the supervisor
// calls it under the same lock that applies transitions, so a resolved
// waiter always observes the satisfying state or later.
type waiterRegistry struct {
	waiters map[State][]chan struct{}

	// terminal holds waiters resolved by any terminal state.
	terminal []chan struct{}
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{
		waiters: make(map[State][]chan struct{}),
	}
}

// closedChan is returned for waiters whose target state is already current.
var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// register records interest in target and returns the channel that will be
// closed when it becomes current. The caller is responsible for the
// already-current short circuit.
func (r *waiterRegistry) register(target State) <-chan struct{} {
	ch := make(chan struct{})
	r.waiters[target] = append(r.waiters[target], ch)
	return ch
}

// registerTerminal records interest in any terminal state.
func (r *waiterRegistry) registerTerminal() <-chan struct{} {
	ch := make(chan struct{})
	r.terminal = append(r.terminal, ch)
	return ch
}

// notify resolves every outstanding waiter registered for state, exactly
// once each, and discards them. Waiters for other states are untouched.
// Terminal waiters are resolved by any terminal state.
func (r *waiterRegistry) notify(state State) {
	if chs := r.waiters[state]; len(chs) > 0 {
		delete(r.waiters, state)
		for _, ch := range chs {
			close(ch)
		}
	}
	if state.IsTerminal() && len(r.terminal) > 0 {
		for _, ch := range r.terminal {
			close(ch)
		}
		r.terminal = nil
	}
}

// pending returns the number of unresolved waiters, across all states.
func (r *waiterRegistry) pending() int {
	n := len(r.terminal)
	for _, chs := range r.waiters {
		n += len(chs)
	}
	return n
}

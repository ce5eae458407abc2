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

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned by Stop when the process is not in the
	// Running state.
	ErrNotRunning = errors.New("supervised process is not running")
)

// StartError reports a launch validation failure: the executable could not
// be found or executed, or the working directory does not exist. It is
// recorded on the supervisor and also returned from Start, before any
// Running state is ever reported.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// InvalidTransitionError reports an attempted state change that is not in
// the transition table, or an operation invoked from a state that does not
// permit it. It indicates a programming-level misuse of the supervisor.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

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

/*
Package supervisor embeds one external program as a managed sub-process.

A Supervisor owns a single child process across repeated runs. Each run
walks an explicit state graph:

	NotStarted -> Starting -> Running -> {ExitedSuccessfully, ExitedWithError}
	                       -> StartFailed
	              Running  -> Stopping -> {ExitedSuccessfully, ExitedWithError}

Terminal states loop back to Starting so an instance can be restarted.
Illegal transitions are rejected with InvalidTransitionError.

	sup := supervisor.New(supervisor.Config{
	    Path:    "my-daemon",
	    Args:    []string{"--port", "9000"},
	    RunType: supervisor.NonTerminating,
	})
	if err := sup.Start(); err != nil {
	    // StartFailed is already observable here
	}
	<-sup.WhenStateIs(supervisor.Running)
	_ = sup.Stop(5 * time.Second) // SIGTERM, then SIGKILL after 5s
	<-sup.WhenTerminal()

Any number of goroutines may register waiters with WhenStateIs; each
resolves exactly once, immediately when the target is already current.
Output lines are delivered per stream in arrival order through the
callback set with WithOutput. Exit classification is by actual exit code:
zero yields ExitedSuccessfully, anything else ExitedWithError. A forced
kill is not a distinct outcome; it surfaces through the code the OS
reports.
*/
package supervisor

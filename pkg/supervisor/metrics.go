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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_state_transitions_total",
			Help: "Total supervisor state transitions by edge",
		},
		[]string{"from", "to"},
	)

	startsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shepherd_starts_total",
			Help: "Total start attempts by result",
		},
		[]string{"result"},
	)

	forceKills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shepherd_force_kills_total",
		Help: "Total forced terminations after a stop timeout",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shepherd_run_duration_seconds",
		Help:    "Wall-clock duration of completed runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

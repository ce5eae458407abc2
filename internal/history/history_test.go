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

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	code := 0
	started := time.Now().Add(-time.Minute)
	require.NoError(t, store.RecordRun(ctx, Run{
		ID:         "run-1",
		Executable: "/usr/bin/my-daemon",
		Args:       []string{"--port", "9000"},
		Outcome:    "ExitedSuccessfully",
		ExitCode:   &code,
		StartedAt:  started,
		EndedAt:    started.Add(30 * time.Second),
	}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "/usr/bin/my-daemon", got.Executable)
	assert.Equal(t, []string{"--port", "9000"}, got.Args)
	assert.Equal(t, "ExitedSuccessfully", got.Outcome)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, 0, *got.ExitCode)
	assert.Empty(t, got.StartError)
}

func TestRecordStartFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.RecordRun(ctx, Run{
		ID:         "run-2",
		Executable: "/nonexistent/binary",
		Outcome:    "StartFailed",
		StartError: "executable file not found",
		StartedAt:  now,
		EndedAt:    now,
	}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Nil(t, runs[0].ExitCode)
	assert.Equal(t, "executable file not found", runs[0].StartError)
}

func TestListOrderAndLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRun(ctx, Run{
			ID:         string(rune('a' + i)),
			Executable: "sleep",
			Outcome:    "ExitedWithError",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			EndedAt:    base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.Equal(t, "e", runs[0].ID)
	assert.Equal(t, "d", runs[1].ID)
	assert.Equal(t, "c", runs[2].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestDuplicateRunIDRejected(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	run := Run{ID: "dup", Executable: "sleep", Outcome: "ExitedSuccessfully", StartedAt: time.Now(), EndedAt: time.Now()}
	require.NoError(t, store.RecordRun(ctx, run))
	assert.Error(t, store.RecordRun(ctx, run))
}

func TestEmptyIDRejected(t *testing.T) {
	store := openStore(t)
	assert.Error(t, store.RecordRun(context.Background(), Run{}))
}

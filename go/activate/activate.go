// Package activate implements the activation controller (spec module
// 4.7): a per-task tick function that decides whether to (re-)activate a
// task's data-plane shards, tracks shard health and failure backoff, and
// schedules its own next tick.
//
// Adapted from original_source's crates/agent/src/controllers/
// activation.rs; the capability injection shape (current time, activate,
// list shards, shard failures) and the NextRun/backoff idiom follow the
// teacher's go/runtime/task.go and split_workflow.go, which similarly
// drive gazette shard/journal reconciliation from small, explicitly
// injected capability interfaces rather than ambient globals.
package activate

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// ShardHealth is the per-shard or per-task aggregate health computed from
// replica statuses.
type ShardHealth int

const (
	HealthPending ShardHealth = iota
	HealthOk
	HealthFailed
)

// ReplicaStatus is a single replica's reported status code, as surfaced by
// list_task_shards().
type ReplicaStatus int

const (
	ReplicaPending ReplicaStatus = iota
	ReplicaPrimary
	ReplicaBackup
	ReplicaFailed
	ReplicaStandby
)

// Replica is one observed replica of a shard.
type Replica struct {
	Status     ReplicaStatus
	BuildLabel string // the build id this replica was assembled against.
}

// ShardListing groups the replicas observed for one shard.
type ShardListing struct {
	ShardID  string
	Replicas []Replica
}

// ShardFailure is a single ShardFailed event or historical failure row.
type ShardFailure struct {
	ShardID     string
	KeyBegin    uint32
	RClockBegin uint32
	Timestamp   time.Time
	BuildID     int64
}

// Event is an inbox event delivered to a tick.
type Event struct {
	ShardFailed *ShardFailure
}

// ControllerState is the persisted state driving one task's controller.
type ControllerState struct {
	CatalogName string
	LastBuildID int64
	LastPubID   int64
	DataPlaneID string
	LiveSpec    []byte
	BuiltSpec   []byte

	LastActivated      int64
	LastActivatedAt    time.Time
	NextRetry          time.Time
	RecentFailureCount int
	LastFailure        time.Time

	// ShardHealthStatus is the most recently computed aggregate health;
	// HealthPending until the first post-activation health check runs.
	ShardHealthStatus ShardHealth
	// LastHealthCheck is when ShardHealthStatus was last refreshed.
	LastHealthCheck time.Time
	// ConsecutiveFailedChecks counts shard-health checks in a row that
	// found ShardHealthStatus == HealthFailed without an intervening
	// ShardFailed event.
	ConsecutiveFailedChecks int
}

// NextRun is the controller's request for when it should next tick.
type NextRun struct {
	At time.Time
}

// AfterMinutes schedules a tick n minutes from now.
func AfterMinutes(now time.Time, n float64) NextRun {
	return NextRun{At: now.Add(time.Duration(n * float64(time.Minute)))}
}

// WithJitterPercent perturbs the run time by up to pct percent, split
// evenly either side of the nominal time, matching the upstream
// NextRun::with_jitter_percent used to avoid thundering-herd retries.
func (n NextRun) WithJitterPercent(now time.Time, pct float64) NextRun {
	var delta = n.At.Sub(now)
	var jitterRange = float64(delta) * (pct / 100)
	var jitter = (rand.Float64()*2 - 1) * jitterRange / 2
	return NextRun{At: n.At.Add(time.Duration(jitter))}
}

// Capabilities are the side effects a tick may need to perform, injected
// so the controller itself stays a pure function of state and events.
type Capabilities interface {
	CurrentTime() time.Time
	DataPlaneActivate(ctx context.Context, name string, builtSpec []byte, dataPlaneID string) error
	ListTaskShards(ctx context.Context, catalogName string) ([]ShardListing, error)
	GetShardFailures(ctx context.Context, catalogName string, buildID int64) ([]ShardFailure, error)
	DeleteShardFailures(ctx context.Context, catalogName string, olderThanBuildID int64) error
}

// isOpsCatalogTask reports whether name belongs to the ops catalog, which
// cannot emit ShardFailed events about itself and so uses shorter,
// self-healing re-check intervals.
func isOpsCatalogTask(name string) bool {
	return strings.HasPrefix(name, "ops/") || strings.HasPrefix(name, "ops.us-central1.v1/")
}

// Tick runs one precedence-ordered pass of the controller algorithm
// against state, applying events and capabilities, and returns the next
// time it should be invoked (nil if the task is fully settled and has no
// shards to watch).
func Tick(ctx context.Context, state *ControllerState, events []Event, caps Capabilities) (next *NextRun, err error) {
	defer func() {
		if err != nil {
			recordTickError(state.CatalogName)
		}
	}()
	var now = caps.CurrentTime()

	// 1. New build: activate unconditionally, resetting failure bookkeeping.
	if state.LastBuildID > state.LastActivated {
		if err := activate(ctx, state, caps, now); err != nil {
			return nil, err
		}
		recordActivation(state.CatalogName, "new_build")
		if err := caps.DeleteShardFailures(ctx, state.CatalogName, state.LastBuildID); err != nil {
			return nil, err
		}
		state.RecentFailureCount = 0
		state.NextRetry = time.Time{}
		state.ShardHealthStatus = HealthPending
		state.ConsecutiveFailedChecks = 0

		shards, err := caps.ListTaskShards(ctx, state.CatalogName)
		if err != nil {
			return nil, err
		}
		if len(shards) == 0 {
			return nil, nil
		}
		var run = AfterMinutes(now, 5)
		return &run, nil
	}

	// 2. Failure bookkeeping.
	var sawShardFailed bool
	for _, e := range events {
		if e.ShardFailed != nil {
			sawShardFailed = true
		}
	}
	if sawShardFailed || state.RecentFailureCount > 0 {
		failures, err := caps.GetShardFailures(ctx, state.CatalogName, state.LastBuildID)
		if err != nil {
			return nil, err
		}
		state.RecentFailureCount = len(failures)
		for _, f := range failures {
			if f.Timestamp.After(state.LastFailure) {
				state.LastFailure = f.Timestamp
			}
		}
		if state.NextRetry.IsZero() && len(failures) > 0 {
			var next = getNextRetryTime(now, failures)
			state.NextRetry = next.At
		}
	}

	// 3. Retry time reached.
	if !state.NextRetry.IsZero() && !state.NextRetry.After(now) {
		if err := activate(ctx, state, caps, now); err != nil {
			return nil, err
		}
		recordActivation(state.CatalogName, "retry")
		state.NextRetry = time.Time{}
		state.ShardHealthStatus = HealthPending
		var run = healthCheckCadence(state, now)
		return &run, nil
	}

	// 4. Shard health check.
	return tickShardHealth(ctx, state, sawShardFailed, caps, now)
}

func activate(ctx context.Context, state *ControllerState, caps Capabilities, now time.Time) error {
	if err := activateWithRetry(ctx, state, caps); err != nil {
		return err
	}
	state.LastActivated = state.LastBuildID
	state.LastActivatedAt = now
	state.NextRetry = time.Time{}
	return nil
}

// activateWithRetry runs data_plane_activate under a 60-second timeout,
// retrying on failure with backoff_data_plane_activate. It returns only
// once the activate call has succeeded, or the context is canceled.
func activateWithRetry(ctx context.Context, state *ControllerState, caps Capabilities) error {
	for attempt := 0; ; attempt++ {
		var callCtx, cancel = context.WithTimeout(ctx, 60*time.Second)
		var err = caps.DataPlaneActivate(callCtx, state.CatalogName, state.BuiltSpec, state.DataPlaneID)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var backoff = backoffDataPlaneActivate(attempt)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoffDataPlaneActivate grows geometrically, capped at one minute,
// mirroring the upstream retry ladder used around the activation RPC.
func backoffDataPlaneActivate(attempt int) time.Duration {
	if attempt >= 6 {
		return time.Minute // 2^6 seconds already exceeds the cap.
	}
	var d = time.Second * time.Duration(1<<uint(attempt))
	if d > time.Minute {
		d = time.Minute
	}
	return d
}

// getNextRetryTime implements the backoff formula (spec 4.7): an
// N-shard task that fails once per shard restarts immediately; only a
// shard that keeps failing staggers the retry.
func getNextRetryTime(now time.Time, failures []ShardFailure) NextRun {
	var uniqueShards = make(map[string]struct{}, len(failures))
	for _, f := range failures {
		uniqueShards[f.ShardID] = struct{}{}
	}
	if len(uniqueShards) == 0 {
		return NextRun{At: now}
	}
	var consecutive = (len(failures) + len(uniqueShards) - 1) / len(uniqueShards)
	if consecutive <= 2 {
		return NextRun{At: now}
	}
	var minutes = float64(consecutive) * 2
	if minutes > 10 {
		minutes = 10
	}
	return AfterMinutes(now, minutes).WithJitterPercent(now, 50)
}

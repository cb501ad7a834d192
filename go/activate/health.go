package activate

import (
	"context"
	"fmt"
	"time"
)

// shardHealth maps each replica's status to {Pending, Ok,
// Failed}: a shard is Ok iff any replica is Primary, else Failed iff any
// replica is Failed, else Pending. A replica carrying a stale build label
// (not the task's current build) forces the whole shard to Pending,
// since its status can't be trusted to reflect the build under tick.
func shardHealth(listing ShardListing, currentBuild string) ShardHealth {
	var anyFailed bool
	for _, r := range listing.Replicas {
		if r.BuildLabel != "" && r.BuildLabel != currentBuild {
			return HealthPending
		}
		switch r.Status {
		case ReplicaPrimary:
			return HealthOk
		case ReplicaFailed:
			anyFailed = true
		}
	}
	if anyFailed {
		return HealthFailed
	}
	return HealthPending
}

// aggregateTaskHealth combines every shard's health: Failed if any shard
// is Failed, Ok iff every shard is Ok, else Pending. An empty listing
// (no shards yet, or all were just reset) is Pending.
func aggregateTaskHealth(shards []ShardListing, currentBuild string) ShardHealth {
	if len(shards) == 0 {
		return HealthPending
	}
	var allOk = true
	for _, s := range shards {
		switch shardHealth(s, currentBuild) {
		case HealthFailed:
			return HealthFailed
		case HealthPending:
			allOk = false
		}
	}
	if allOk {
		return HealthOk
	}
	return HealthPending
}

// healthCheckCadence picks the re-check interval ladder: shorter rungs
// while not Ok, longer rungs once Ok, and a shorter ladder entirely for
// ops-catalog tasks, which cannot observe their own ShardFailed events.
func healthCheckCadence(state *ControllerState, now time.Time) NextRun {
	if isOpsCatalogTask(state.CatalogName) {
		return AfterMinutes(now, 0.5) // 30s
	}
	var rungs []float64
	if state.ShardHealthStatus == HealthOk {
		rungs = []float64{3, 10, 60}
	} else {
		rungs = []float64{0.5, 1, 3, 60}
	}
	var idx = state.ConsecutiveFailedChecks
	if idx >= len(rungs) {
		idx = len(rungs) - 1
	}
	return AfterMinutes(now, rungs[idx])
}

// reactivateInterval is how long a task may sit at non-Ok health, without
// a ShardFailed event, before the controller gives up waiting and forces
// a re-activation. ops-catalog tasks use a short ceiling of their own.
func reactivateInterval(catalogName string) time.Duration {
	if isOpsCatalogTask(catalogName) {
		return 5 * time.Minute
	}
	return 60 * time.Minute
}

// tickShardHealth is precedence step 4: refresh the aggregate shard
// health, and either schedule the next routine check or force a
// re-activation after three consecutive Failed checks past the
// re-activate interval with no intervening ShardFailed event.
func tickShardHealth(ctx context.Context, state *ControllerState, sawShardFailed bool, caps Capabilities, now time.Time) (*NextRun, error) {
	shards, err := caps.ListTaskShards(ctx, state.CatalogName)
	if err != nil {
		return nil, err
	}
	var currentBuild = buildLabel(state.LastBuildID)
	var health = aggregateTaskHealth(shards, currentBuild)

	if health == HealthFailed && !sawShardFailed {
		state.ConsecutiveFailedChecks++
	} else {
		state.ConsecutiveFailedChecks = 0
	}
	state.ShardHealthStatus = health
	state.LastHealthCheck = now
	recordShardHealth(state.CatalogName, health)

	if state.ConsecutiveFailedChecks >= 3 &&
		!sawShardFailed &&
		now.Sub(state.LastActivatedAt) > reactivateInterval(state.CatalogName) {
		if err := activate(ctx, state, caps, now); err != nil {
			return nil, err
		}
		recordActivation(state.CatalogName, "stale_health")
		state.ConsecutiveFailedChecks = 0
		state.ShardHealthStatus = HealthPending
	}

	var run = healthCheckCadence(state, now)
	return &run, nil
}

// buildLabel formats a build id the way catalog specs carry it as a
// label value: lower-case, zero-padded hex.
func buildLabel(buildID int64) string {
	return fmt.Sprintf("%016x", uint64(buildID))
}

package converge

import (
	"context"
	"fmt"

	"github.com/estuary/data-plane-core/go/catalog"
	"go.gazette.dev/core/broker/client"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/consumer"
	pc "go.gazette.dev/core/consumer/protocol"
)

// CollectionChanges compares a CollectionSpec and |desiredSplits| with the
// collection's |curPartitions|, appending CAS-guarded ApplyRequest_Changes
// which bring current state into consistency with desired state.
func CollectionChanges(
	collection *catalog.CollectionSpec,
	curPartitions []pb.ListResponse_Journal,
	desiredSplits []catalog.LabelSet,
	into []pb.ApplyRequest_Change,
) ([]pb.ApplyRequest_Change, error) {
	var idx = make(map[pb.Journal]*pb.ListResponse_Journal, len(curPartitions))
	for i := range curPartitions {
		idx[curPartitions[i].Spec.Name] = &curPartitions[i]
	}

	for _, d := range desiredSplits {
		next, err := BuildPartitionSpec(collection.PartitionTemplate, d)
		if err != nil {
			return nil, fmt.Errorf("building journal spec: %w", err)
		}

		cur, ok := idx[next.Name]
		if ok && cur == nil {
			return nil, fmt.Errorf("duplicate desired partition journal %s", next.Name)
		} else if ok {
			idx[next.Name] = nil
			if !next.Equal(&cur.Spec) {
				into = append(into, pb.ApplyRequest_Change{
					Upsert:            next,
					ExpectModRevision: cur.ModRevision,
				})
			}
		} else {
			into = append(into, pb.ApplyRequest_Change{
				Upsert:            next,
				ExpectModRevision: 0, // Expected to not exist.
			})
		}
	}

	// Journals still in |idx| are not in the desired set and must be removed.
	for _, cur := range idx {
		if cur == nil {
			continue
		}
		into = append(into, pb.ApplyRequest_Change{
			Delete:            cur.Spec.Name,
			ExpectModRevision: cur.ModRevision,
		})
	}

	return into, nil
}

// TaskChanges compares a Task and |desiredSplits| with the task's
// |curShards| and |curRecoveryLogs|, appending CAS-guarded shard and journal
// changes which bring current state into consistency with desired state.
// Per the ordering invariant (spec section 8.5), the caller applies the
// returned journal changes before the returned shard changes, ensuring a
// recovery log always exists before the shard that replicates into it.
func TaskChanges(
	task catalog.Task,
	recoveryTemplate catalog.JournalTemplate,
	curShards []pc.ListResponse_Shard,
	curRecoveryLogs []pb.ListResponse_Journal,
	desiredSplits []catalog.LabelSet,
	intoShards []pc.ApplyRequest_Change,
	intoJournals []pb.ApplyRequest_Change,
) ([]pc.ApplyRequest_Change, []pb.ApplyRequest_Change, error) {

	var shardIdx = make(map[pc.ShardID]*pc.ListResponse_Shard, len(curShards))
	var logIdx = make(map[pb.Journal]*pb.ListResponse_Journal, len(curRecoveryLogs))

	for i := range curShards {
		shardIdx[curShards[i].Spec.Id] = &curShards[i]
	}
	for i := range curRecoveryLogs {
		logIdx[curRecoveryLogs[i].Spec.Name] = &curRecoveryLogs[i]
	}

	for _, d := range desiredSplits {
		nextShard, err := BuildShardSpec(task.TaskShardTemplate(), d)
		if err != nil {
			return nil, nil, fmt.Errorf("building shard spec: %w", err)
		}
		var nextLog = BuildRecoverySpec(recoveryTemplate, nextShard)

		curShard, ok := shardIdx[nextShard.Id]
		if ok && curShard == nil {
			return nil, nil, fmt.Errorf("duplicate desired shard %s", nextShard.Id)
		} else if ok {
			shardIdx[nextShard.Id] = nil
			if !nextShard.Equal(&curShard.Spec) {
				intoShards = append(intoShards, pc.ApplyRequest_Change{
					Upsert:            nextShard,
					ExpectModRevision: curShard.ModRevision,
				})
			}
		} else {
			intoShards = append(intoShards, pc.ApplyRequest_Change{
				Upsert:            nextShard,
				ExpectModRevision: 0,
			})
		}

		curLog, ok := logIdx[nextLog.Name]
		if ok && curLog == nil {
			return nil, nil, fmt.Errorf("duplicate recovery log; should be unreachable since it implies a duplicate shard")
		} else if ok {
			logIdx[nextLog.Name] = nil
			if !nextLog.Equal(&curLog.Spec) {
				intoJournals = append(intoJournals, pb.ApplyRequest_Change{
					Upsert:            nextLog,
					ExpectModRevision: curLog.ModRevision,
				})
			}
		} else {
			intoJournals = append(intoJournals, pb.ApplyRequest_Change{
				Upsert:            nextLog,
				ExpectModRevision: 0,
			})
		}
	}

	for _, cur := range shardIdx {
		if cur == nil {
			continue
		}
		intoShards = append(intoShards, pc.ApplyRequest_Change{
			Delete:            cur.Spec.Id,
			ExpectModRevision: cur.ModRevision,
		})
	}
	for _, cur := range logIdx {
		if cur == nil {
			continue
		}
		intoJournals = append(intoJournals, pb.ApplyRequest_Change{
			Delete:            cur.Spec.Name,
			ExpectModRevision: cur.ModRevision,
		})
	}

	return intoShards, intoJournals, nil
}

// ActivationChanges enumerates all shard and journal changes required to
// bring a current data-plane state into consistency with the desired state
// of each of the given, activated collections and tasks.
func ActivationChanges(
	ctx context.Context,
	jc pb.JournalClient,
	sc pc.ShardClient,
	collections []*catalog.CollectionSpec,
	tasks []catalog.Task,
	recoveryTemplates []catalog.JournalTemplate,
	initialTaskSplits int,
) ([]pc.ApplyRequest_Change, []pb.ApplyRequest_Change, error) {

	var shards []pc.ApplyRequest_Change
	var journals []pb.ApplyRequest_Change

	for _, collection := range collections {
		resp, err := client.ListAllJournals(ctx, jc, ListPartitionsRequest(collection))
		if err != nil {
			return nil, nil, fmt.Errorf("listing partitions of %s: %w", collection.Name, err)
		}

		var desired = MapPartitionsToCurrentSplits(resp.Journals)
		journals, err = CollectionChanges(collection, resp.Journals, desired, journals)
		if err != nil {
			return nil, nil, fmt.Errorf("processing collection %s: %w", collection.Name, err)
		}
	}

	for i, task := range tasks {
		var shardsReq = ListShardsRequest(task)
		var logsReq = ListRecoveryLogsRequest(task)

		shardsResp, err := consumer.ListShards(ctx, sc, &shardsReq)
		if err != nil {
			return nil, nil, fmt.Errorf("listing shards of %s: %w", task.TaskName(), err)
		}
		logsResp, err := client.ListAllJournals(ctx, jc, logsReq)
		if err != nil {
			return nil, nil, fmt.Errorf("listing recovery logs of %s: %w", task.TaskName(), err)
		}

		var desired = MapShardsToCurrentOrInitialSplits(shardsResp.Shards, initialTaskSplits)
		shards, journals, err = TaskChanges(
			task, recoveryTemplates[i], shardsResp.Shards, logsResp.Journals, desired, shards, journals)
		if err != nil {
			return nil, nil, fmt.Errorf("processing task %s: %w", task.TaskName(), err)
		}
	}

	return shards, journals, nil
}

// PlanDeletion enumerates all shard and journal changes required to tear
// down each of the given collections and tasks entirely: every current
// partition, shard, and recovery log is deleted under its observed
// ModRevision. The same CAS-safety property that governs convergence
// (spec testable property 8.5) applies equally here.
func PlanDeletion(
	ctx context.Context,
	jc pb.JournalClient,
	sc pc.ShardClient,
	collections []*catalog.CollectionSpec,
	tasks []catalog.Task,
) ([]pc.ApplyRequest_Change, []pb.ApplyRequest_Change, error) {

	var shards []pc.ApplyRequest_Change
	var journals []pb.ApplyRequest_Change

	for _, collection := range collections {
		resp, err := client.ListAllJournals(ctx, jc, ListPartitionsRequest(collection))
		if err != nil {
			return nil, nil, fmt.Errorf("listing partitions of %s: %w", collection.Name, err)
		}
		for _, cur := range resp.Journals {
			journals = append(journals, pb.ApplyRequest_Change{
				Delete:            cur.Spec.Name,
				ExpectModRevision: cur.ModRevision,
			})
		}
	}

	for _, task := range tasks {
		var shardsReq = ListShardsRequest(task)
		var logsReq = ListRecoveryLogsRequest(task)

		shardsResp, err := consumer.ListShards(ctx, sc, &shardsReq)
		if err != nil {
			return nil, nil, fmt.Errorf("listing shards of %s: %w", task.TaskName(), err)
		}
		logsResp, err := client.ListAllJournals(ctx, jc, logsReq)
		if err != nil {
			return nil, nil, fmt.Errorf("listing recovery logs of %s: %w", task.TaskName(), err)
		}

		for _, cur := range shardsResp.Shards {
			shards = append(shards, pc.ApplyRequest_Change{
				Delete:            cur.Spec.Id,
				ExpectModRevision: cur.ModRevision,
			})
		}
		for _, cur := range logsResp.Journals {
			journals = append(journals, pb.ApplyRequest_Change{
				Delete:            cur.Spec.Name,
				ExpectModRevision: cur.ModRevision,
			})
		}
	}

	return shards, journals, nil
}

package subscriber

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	pb "go.gazette.dev/core/broker/protocol"
)

// Adapted from original_source's crates/gazette/src/journal/list/
// subscriber.rs's mod tests: basic merge behavior and failure-recovery
// across retries.

type mockSubscriber struct {
	adds      []string
	removes   []string
	failAfter int // 0 means no failure injected.
	opCount   int
}

func (m *mockSubscriber) setFailAfter(n int) { m.failAfter = n; m.opCount = 0 }

func (m *mockSubscriber) reset() {
	m.adds, m.removes = nil, nil
	m.failAfter, m.opCount = 0, 0
}

func (m *mockSubscriber) checkFail() error {
	m.opCount++
	if m.failAfter > 0 && m.opCount > m.failAfter {
		return fmt.Errorf("simulated failure")
	}
	return nil
}

func (m *mockSubscriber) AddJournal(ctx context.Context, createRevision int64, spec pb.JournalSpec, modRevision int64, route pb.Route) error {
	if err := m.checkFail(); err != nil {
		return err
	}
	m.adds = append(m.adds, string(spec.Name))
	return nil
}

func (m *mockSubscriber) RemoveJournal(ctx context.Context, name string) error {
	if err := m.checkFail(); err != nil {
		return err
	}
	m.removes = append(m.removes, name)
	return nil
}

func makeResponse(names ...string) *pb.ListResponse {
	var resp = &pb.ListResponse{}
	for _, n := range names {
		resp.Journals = append(resp.Journals, pb.ListResponse_Journal{
			Spec:           pb.JournalSpec{Name: pb.Journal(n)},
			Route:          pb.Route{},
			CreateRevision: 1,
			ModRevision:    1,
		})
	}
	return resp
}

func runSnapshot(t *testing.T, f *Fold, chunks ...[]string) (int, int) {
	t.Helper()
	f.Begin()
	for _, c := range chunks {
		require.NoError(t, f.Chunk(context.Background(), makeResponse(c...)))
	}
	added, removed, err := f.Finish(context.Background())
	require.NoError(t, err)
	return added, removed
}

func TestBasicOperations(t *testing.T) {
	var sub = &mockSubscriber{}
	var f = NewFold(sub)

	added, removed := runSnapshot(t, f, []string{"a", "b", "c"})
	require.Equal(t, 3, added)
	require.Equal(t, 0, removed)
	require.Equal(t, []string{"a", "b", "c"}, sub.adds)
	sub.reset()

	added, removed = runSnapshot(t, f, []string{"a", "b", "c"})
	require.Equal(t, 0, added)
	require.Equal(t, 0, removed)
	sub.reset()

	added, removed = runSnapshot(t, f, []string{"b", "d"})
	require.Equal(t, 1, added)
	require.Equal(t, 2, removed)
	require.Equal(t, []string{"d"}, sub.adds)
	require.Equal(t, []string{"a", "c"}, sub.removes)
}

func TestMultipleChunks(t *testing.T) {
	var sub = &mockSubscriber{}
	var f = NewFold(sub)

	added, removed := runSnapshot(t, f, []string{"a", "b"}, []string{"c", "d"}, []string{"e"})
	require.Equal(t, 5, added)
	require.Equal(t, 0, removed)
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, sub.adds)
}

func TestUnsortedChunkRejected(t *testing.T) {
	var sub = &mockSubscriber{}
	var f = NewFold(sub)
	f.Begin()
	require.Error(t, f.Chunk(context.Background(), makeResponse("b", "a")))
}

func TestFailureRecoveryDuringChunk(t *testing.T) {
	var sub = &mockSubscriber{}
	var f = NewFold(sub)
	runSnapshot(t, f, []string{"a", "b", "c", "d", "e"})
	sub.reset()

	sub.setFailAfter(2)
	f.Begin()
	require.Error(t, f.Chunk(context.Background(), makeResponse("c", "d", "e", "f", "g")))
	require.Equal(t, []string{"a", "b"}, sub.removes)
	require.Empty(t, sub.adds)

	sub.reset()
	added, removed := runSnapshot(t, f, []string{"c", "d", "e", "f", "g"})
	require.Equal(t, 2, added)
	require.Equal(t, 2, removed)
	require.Equal(t, []string{"f", "g"}, sub.adds)
}

func TestFailureRecoveryDuringFinish(t *testing.T) {
	var sub = &mockSubscriber{}
	var f = NewFold(sub)
	runSnapshot(t, f, []string{"a", "b", "c", "d"})
	sub.reset()

	sub.setFailAfter(1)
	f.Begin()
	require.NoError(t, f.Chunk(context.Background(), makeResponse("a")))
	_, _, err := f.Finish(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"b"}, sub.removes)

	sub.reset()
	added, removed := runSnapshot(t, f, []string{"a"})
	require.Equal(t, 0, added)
	require.Equal(t, 3, removed)
	require.Equal(t, []string{"c", "d"}, sub.removes)
}

// Package subscriber implements the subscriber list-diff engine (spec
// module 4.8): diff-oriented streaming of a journal listing against the
// previous snapshot it saw, so callers receive only the journals added or
// removed since last time rather than re-processing a full listing (which
// can run to millions of entries).
//
// Adapted from original_source's crates/gazette/src/journal/list/
// subscriber.rs. Journal listing types are the teacher's own
// go.gazette.dev/core/broker/protocol wire types, already used the same
// way by the converge package's shard/journal reconciliation.
package subscriber

import (
	"context"
	"fmt"

	pb "go.gazette.dev/core/broker/protocol"
)

// Subscriber receives journal addition and removal notifications as a
// Fold streams a sequence of list chunks against the previous snapshot.
type Subscriber interface {
	AddJournal(ctx context.Context, createRevision int64, spec pb.JournalSpec, modRevision int64, route pb.Route) error
	RemoveJournal(ctx context.Context, name string) error
}

type mode int

const (
	modeReady mode = iota
	modeMerging
)

// Fold drives a Subscriber with the additions and removals implied by a
// streamed sequence of journal listing chunks, performing a streaming
// sorted merge against the previous snapshot rather than buffering either
// snapshot in full.
type Fold struct {
	subscriber Subscriber
	mode       mode

	previous      PackedStrings
	previousIndex int
	previousLast  string

	current     PackedStrings
	currentTail string

	added, removed int
}

// NewFold constructs a Fold with an empty initial snapshot.
func NewFold(s Subscriber) *Fold {
	return &Fold{subscriber: s, mode: modeReady}
}

// Begin starts a new snapshot. If the prior attempt failed partway
// through chunk or finish, its partial progress is preserved: the
// subscriber has already been notified of every journal through
// f.current plus whatever of the old previous snapshot remained
// unprocessed, so begin reconstructs exactly that set as the new
// previous, letting the retried snapshot correctly classify journals it
// already reported.
func (f *Fold) Begin() {
	if f.mode == modeReady {
		f.mode = modeMerging
		f.previousIndex = 0
		f.previousLast = ""
		f.current = PackedStrings{}
		f.currentTail = ""
		return
	}

	var newPrevious PackedStrings
	var newPreviousTail string
	var tail string
	for i := 0; i < f.current.Len(); i++ {
		f.current.Decode(i, &tail)
		newPrevious.Encode(tail, &newPreviousTail)
	}
	for i := f.previousIndex; i < f.previous.Len(); i++ {
		f.previous.Decode(i, &f.previousLast)
		newPrevious.Encode(f.previousLast, &newPreviousTail)
	}

	f.previous = newPrevious
	f.previousIndex = 0
	f.previousLast = ""
	f.current = PackedStrings{}
	f.currentTail = ""
	// f.added and f.removed carry over unchanged: they're cumulative
	// across the whole snapshot attempt, including any retries.
}

// Chunk processes one ListResponse's worth of journals, which must be in
// strictly ascending name order continuing from any prior chunk in this
// snapshot.
func (f *Fold) Chunk(ctx context.Context, resp *pb.ListResponse) error {
	if f.mode != modeMerging {
		return fmt.Errorf("subscriber: Chunk called outside Merging state")
	}

	for i := range resp.Journals {
		var entry = &resp.Journals[i]
		var name = string(entry.Spec.Name)

		if name <= f.currentTail {
			return fmt.Errorf("subscriber: list response is not in sorted order")
		}

		var foundInPrevious bool
		for f.previousIndex < f.previous.Len() {
			f.previous.Decode(f.previousIndex, &f.previousLast)
			switch {
			case f.previousLast < name:
				if err := f.subscriber.RemoveJournal(ctx, f.previousLast); err != nil {
					return err
				}
				f.removed++
				f.previousIndex++
			case f.previousLast == name:
				foundInPrevious = true
				f.previousIndex++
				goto matched
			default:
				goto matched
			}
		}
	matched:

		if !foundInPrevious {
			if err := f.subscriber.AddJournal(ctx, entry.CreateRevision, entry.Spec, entry.ModRevision, entry.Route); err != nil {
				return err
			}
			f.added++
		}

		// Recorded only after the subscriber callback succeeds, so a
		// retry correctly re-classifies this journal as new if it didn't
		// actually take effect.
		f.current.Encode(name, &f.currentTail)
	}
	return nil
}

// Finish drains any remaining previous entries as removals, swaps current
// into previous for the next snapshot, and returns the cumulative
// (added, removed) counts the subscriber has observed across this
// snapshot and any retries of it.
func (f *Fold) Finish(ctx context.Context) (added, removed int, err error) {
	if f.mode != modeMerging {
		return 0, 0, fmt.Errorf("subscriber: Finish called outside Merging state")
	}

	for f.previousIndex < f.previous.Len() {
		f.previous.Decode(f.previousIndex, &f.previousLast)
		if err := f.subscriber.RemoveJournal(ctx, f.previousLast); err != nil {
			return 0, 0, err
		}
		f.removed++
		f.previousIndex++
	}

	added, removed = f.added, f.removed
	f.previous = f.current
	f.current = PackedStrings{}
	f.added, f.removed = 0, 0
	f.mode = modeReady
	return added, removed, nil
}

package actors

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"docflow/auth"
	"docflow/document"
	"docflow/outbox"
)

// Tally counts what the actors managed to commit; the stress test asserts the
// run made progress.
type Tally struct {
	Reviews   atomic.Int64
	Replays   atomic.Int64
	Resubmits atomic.Int64
	Updates   atomic.Int64
	Errors    atomic.Int64
	Relayed   atomic.Int64
}

func (t *Tally) String() string {
	return fmt.Sprintf("reviews=%d replays=%d resubmits=%d updates=%d errors=%d relayed=%d",
		t.Reviews.Load(), t.Replays.Load(), t.Resubmits.Load(), t.Updates.Load(), t.Errors.Load(), t.Relayed.Load())
}

var stageActions = map[document.Stage][]string{
	document.StageConsultant:  {document.ActionApprove, document.ActionReturnForCorrection, document.ActionReject},
	document.StageEngineering: {document.ActionApprove, document.ActionApproveWithNotes, document.ActionReturnForCorrection},
	document.StageManager:     {document.ActionApprove, document.ActionReturnForCorrection},
}

// Reviewer hammers random documents with random actions of its stage. About
// one call in five reuses the previous idempotency key and must replay. Each
// Reviewer needs its own principal.
func Reviewer(ctx context.Context, svc *document.Service, actor auth.Principal, stage document.Stage, docIDs []string, tally *Tally, stop <-chan struct{}) error {
	names := stageActions[stage]
	type sent struct{ key, name string }
	lastKey := map[string]sent{}
	mine := map[string]int{}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		docID := docIDs[rand.Intn(len(docIDs))]
		name := names[rand.Intn(len(names))]

		key, replay := uuid.NewString(), false
		if prev, ok := lastKey[docID]; ok && rand.Intn(5) == 0 {
			key, name, replay = prev.key, prev.name, true
		}

		doc, err := svc.ReviewByName(ctx, actor, docID, stage, name, "stress note", key)
		switch {
		case err != nil:
			// the commit may have landed before the error surfaced
			delete(lastKey, docID)
			tally.Errors.Add(1)
		case replay:
			tally.Replays.Add(1)
			if n := approvalsBy(doc, actor.ID); n != mine[docID] {
				return fmt.Errorf("reviewer: replay on %s changed approvals by %s from %d to %d", docID, actor.ID, mine[docID], n)
			}
		default:
			lastKey[docID] = sent{key: key, name: name}
			mine[docID] = approvalsBy(doc, actor.ID)
			tally.Reviews.Add(1)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

func approvalsBy(doc document.Document, userID string) int {
	n := 0
	for _, a := range doc.Approvals {
		if a.ApprovedByID == userID {
			n++
		}
	}
	return n
}

// Vendor resubmits or swaps the file of its own documents.
func Vendor(ctx context.Context, svc *document.Service, actor auth.Principal, docIDs []string, tally *Tally, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		docID := docIDs[rand.Intn(len(docIDs))]
		path := fmt.Sprintf("/uploads/%s-%d.pdf", docID, rand.Int63())
		if rand.Intn(3) == 0 {
			if _, err := svc.UpdateFile(ctx, actor, docID, path); err != nil {
				tally.Errors.Add(1)
			} else {
				tally.Updates.Add(1)
			}
		} else {
			if _, err := svc.Resubmit(ctx, actor, docID, path, uuid.NewString()); err != nil {
				tally.Errors.Add(1)
			} else {
				tally.Resubmits.Add(1)
			}
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// OutboxWorker drains the outbox through the relay alongside any other
// worker; SKIP LOCKED keeps their batches disjoint.
func OutboxWorker(ctx context.Context, relay *outbox.Relay, tally *Tally, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		stats, err := relay.RunOnce(ctx)
		if err == nil {
			tally.Relayed.Add(int64(stats.Processed))
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// FlakyPublisher fails roughly one publish in every n.
func FlakyPublisher(n int) outbox.Publisher {
	return outbox.PublisherFunc(func(_ context.Context, msg outbox.Message) error {
		if rand.Intn(n) == 0 {
			return fmt.Errorf("simulated broker failure for %s", msg.Topic)
		}
		return nil
	})
}

package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crawlkit/crawld/internal/crawl"
	queuememory "github.com/crawlkit/crawld/internal/queue/memory"
)

type fixedIDs struct {
	ids []string
	err error
}

func (g *fixedIDs) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type brokenQueue struct{}

func (brokenQueue) Enqueue(context.Context, crawl.Task) error { return errors.New("queue full") }

func (brokenQueue) Dequeue(context.Context) (crawl.Task, error) {
	return crawl.Task{}, errors.New("queue full")
}

func TestDispatchEnqueuesTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue := queuememory.NewQueue(1)
	d := New(queue, &fixedIDs{ids: []string{"task-1"}}, fixedClock{now: time.Unix(42, 0)}, nil)

	taskID, err := d.Dispatch(ctx, "crawl-1")
	require.NoError(t, err)
	require.Equal(t, "task-1", taskID)

	task, err := queue.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, crawl.Task{TaskID: "task-1", CrawlID: "crawl-1", Attempt: 1, Submitted: 42}, task)
}

func TestDispatchQueueFailure(t *testing.T) {
	t.Parallel()

	d := New(brokenQueue{}, &fixedIDs{ids: []string{"task-1"}}, fixedClock{}, nil)

	_, err := d.Dispatch(context.Background(), "crawl-1")
	require.ErrorContains(t, err, "queue enqueue")
}

func TestDispatchIDGenerationFailure(t *testing.T) {
	t.Parallel()

	d := New(queuememory.NewQueue(1), &fixedIDs{err: errors.New("entropy exhausted")}, fixedClock{}, nil)

	_, err := d.Dispatch(context.Background(), "crawl-1")
	require.ErrorContains(t, err, "generate task id")
}

package eventloop

import (
	"context"

	"github.com/joeycumines/go-microbatch"
)

// PostBatcher groups posts from many producers, so each batch takes the post
// queue lock and raises the loop's wakeup once.
type PostBatcher struct {
	batcher *microbatch.Batcher[*PostedEvent]
	loop    *Loop
}

// NewPostBatcher creates a PostBatcher for loop. The config may be nil, see
// microbatch.BatcherConfig for the defaults. Close or Shutdown it when done.
func NewPostBatcher(loop *Loop, config *microbatch.BatcherConfig) *PostBatcher {
	x := &PostBatcher{loop: loop}
	x.batcher = microbatch.NewBatcher[*PostedEvent](config, x.process)
	return x
}

func (x *PostBatcher) process(_ context.Context, events []*PostedEvent) error {
	return x.loop.postBatch(events)
}

// Post queues a notification, waiting until its batch has been handed to the
// loop. The recipient semantics are as per Loop.Post.
func (x *PostBatcher) Post(ctx context.Context, n Notification, recipient *RecipientID) error {
	res, err := x.batcher.Submit(ctx, &PostedEvent{Recipient: recipient, Payload: n})
	if err != nil {
		return err
	}
	return res.Wait(ctx)
}

// Shutdown stops accepting posts, and waits for pending batches.
func (x *PostBatcher) Shutdown(ctx context.Context) error {
	return x.batcher.Shutdown(ctx)
}

// Close cancels pending batches.
func (x *PostBatcher) Close() error {
	return x.batcher.Close()
}

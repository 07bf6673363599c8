package worker

import (
	"context"
	"sync"
	"time"

	"github.com/relaymesh/githook-worker/subscriber"
)

// runFanout starts every (subscriber, topic) task on its own goroutine and
// blocks until all of them return. A watcher goroutine waits on the derived
// context; when it's canceled — by parent's cancellation or because a task
// failed — it calls Close on every owned subscriber so their Start calls
// unblock. Only the first observed task error is returned.
func (w *Worker) runFanout(parent context.Context, tasks []fanoutTask, closers []subscriber.Subscriber) error {
	runCtx, cancelRun := context.WithCancel(parent)
	defer cancelRun()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, task := range tasks {
		wg.Add(1)
		go func(task fanoutTask) {
			defer wg.Done()
			if err := task.sub.Start(runCtx, task.topic, task.handler); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				cancelRun()
			}
		}(task)
	}

	watchDone := make(chan struct{})
	go func() {
		<-runCtx.Done()
		w.closeAll(closers)
		close(watchDone)
	}()

	wg.Wait()
	cancelRun()
	<-watchDone

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// closeAll calls Close on every closer concurrently, skipping nil entries
// and repeats of the same subscriber. It waits up to w.closeTimeout for
// all of them to return, logging (not blocking forever) if they don't. The
// timeout covers the Close calls only; runFanout still waits for every
// Start to return.
func (w *Worker) closeAll(closers []subscriber.Subscriber) {
	seen := make(map[subscriber.Subscriber]struct{}, len(closers))
	unique := make([]subscriber.Subscriber, 0, len(closers))
	for _, c := range closers {
		if c == nil {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}

	var wg sync.WaitGroup
	for _, c := range unique {
		wg.Add(1)
		go func(c subscriber.Subscriber) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				w.logger.Warn("worker: subscriber close returned an error", "error", err)
			}
		}(c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.closeTimeout):
		w.logger.Warn("worker: timed out waiting for subscribers to close")
	}
}

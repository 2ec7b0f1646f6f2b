package bot

import "sync"

// Dispatcher serializes work per conversation key. Each key gets its own
// worker goroutine fed by a buffered channel, so messages in one thread
// are handled strictly in arrival order while different threads proceed
// in parallel.
type Dispatcher struct {
	buffer int

	mu      sync.Mutex
	workers map[string]chan func()
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Dispatcher{
		buffer:  buffer,
		workers: make(map[string]chan func()),
	}
}

// Submit enqueues task on the worker owning key, spawning the worker on
// first use. Tasks submitted after Close are dropped.
//
// The send stays under the mutex: Close closes the worker channels under
// the same mutex, so a send can never hit a just-closed channel. Workers
// drain without taking the mutex, so a full buffer delays Submit but
// cannot deadlock it.
func (d *Dispatcher) Submit(key string, task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	ch, ok := d.workers[key]
	if !ok {
		ch = make(chan func(), d.buffer)
		d.workers[key] = ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for fn := range ch {
				fn()
			}
		}()
	}
	ch <- task
}

// Close stops accepting tasks and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// ConversationKey builds the dispatch key for a channel/thread pair.
func ConversationKey(channelID, threadID string) string {
	return channelID + "/" + threadID
}

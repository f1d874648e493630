package bot

import (
	"sync"

	"safety-inspection/pkg/telegram"
)

// chatDispatcher runs updates of one chat in arrival order on a single worker.
// A worker holds one slot of sem until its queue drains, so a busy chat never
// occupies more than one slot. Queues are dropped as soon as they are empty.
type chatDispatcher struct {
	mu     sync.Mutex
	queues map[int64]*chatQueue
	sem    chan struct{}
	wg     sync.WaitGroup
	handle func(telegram.Update)
}

type chatQueue struct {
	pending []telegram.Update
}

func newChatDispatcher(limit int, handle func(telegram.Update)) *chatDispatcher {
	return &chatDispatcher{
		queues: make(map[int64]*chatQueue),
		sem:    make(chan struct{}, limit),
		handle: handle,
	}
}

// Dispatch queues update behind the chat's earlier updates. When the chat has no
// worker yet it waits for a free slot and starts one.
func (d *chatDispatcher) Dispatch(chatID int64, update telegram.Update) {
	d.mu.Lock()
	if q, ok := d.queues[chatID]; ok {
		q.pending = append(q.pending, update)
		d.mu.Unlock()
		return
	}
	q := &chatQueue{pending: []telegram.Update{update}}
	d.queues[chatID] = q
	d.wg.Add(1)
	d.mu.Unlock()

	d.sem <- struct{}{}
	go d.drain(chatID, q)
}

func (d *chatDispatcher) drain(chatID int64, q *chatQueue) {
	defer d.wg.Done()
	defer func() { <-d.sem }()

	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		update := q.pending[0]
		q.pending[0] = telegram.Update{}
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.handle(update)
	}
}

func (d *chatDispatcher) Wait() {
	d.wg.Wait()
}

func (d *chatDispatcher) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

package pipeline

import "sync"

// broadcastBuffer is the per-subscriber ring capacity. A slow or absent
// reader loses the oldest entries rather than blocking the verifier.
const broadcastBuffer = 10_000

// Broadcaster fans verified addresses out to interactive subscribers.
// Publishing with no subscribers drops the value silently; that is the
// normal state when nobody is waiting on a lightning request.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan string
	next int
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan string)}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. Cancel is idempotent and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan string, broadcastBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an address to every subscriber, evicting the oldest
// buffered entry when a subscriber's ring is full.
func (b *Broadcaster) Publish(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		for {
			select {
			case ch <- addr:
			default:
				// Ring full: drop the oldest and retry.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers reports the current listener count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

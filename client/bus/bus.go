// Package bus is a small in-process broadcast channel, used to tell
// interested components that the cart changed.
package bus

import "sync"

type Bus struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[string][]chan struct{})}
}

// Subscribe returns a channel that receives a signal after each
// publish on the topic. The channel is buffered and publishes
// coalesce: a slow consumer sees at least one signal, not one per
// publish.
func (b *Bus) Subscribe(topic string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], ch)

	return ch
}

// Publish never blocks, whatever the subscribers are doing.
func (b *Bus) Publish(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

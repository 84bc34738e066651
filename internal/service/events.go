package service

import (
	"sync"

	"findingchart/internal/model"
)

const subscriberBuffer = 64

// hub fans chart events of one batch out to its subscribers. Slow
// subscribers lose events rather than stall the renderers.
type hub struct {
	mu     sync.Mutex
	subs   map[chan model.ChartEvent]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan model.ChartEvent]struct{})}
}

// subscribe returns a channel that is closed once the batch has settled or
// the returned cancel func is called.
func (h *hub) subscribe() (<-chan model.ChartEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.ChartEvent, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
		})
	}
}

func (h *hub) publish(ev model.ChartEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

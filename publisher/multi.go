package publisher

import "github.com/arloliu/go-lislink/link"

// Multi publishes every event to each of its publishers in order.
type Multi []link.EventPublisher

var _ link.EventPublisher = Multi(nil)

// NewMulti drops nil publishers.
func NewMulti(pubs ...link.EventPublisher) Multi {
	out := make(Multi, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}

	return out
}

func (m Multi) Publish(ev link.Event) {
	for _, p := range m {
		p.Publish(ev)
	}
}

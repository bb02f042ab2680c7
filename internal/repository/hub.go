package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/entity"
)

type subscriber struct {
	ch chan *entity.Room
}

// hub fans room writes out to in-process subscribers. A subscriber that has not
// consumed its pending snapshot gets it replaced by the newer one.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

func (that *hub) subscribe(ctx context.Context, id string) <-chan *entity.Room {
	sub := &subscriber{ch: make(chan *entity.Room, 1)}

	that.mu.Lock()
	set, ok := that.subs[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		that.subs[id] = set
	}
	set[sub] = struct{}{}
	that.mu.Unlock()

	go func() {
		<-ctx.Done()

		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.subs[id], sub)
		if len(that.subs[id]) == 0 {
			delete(that.subs, id)
		}
		close(sub.ch)
	}()

	return sub.ch
}

func (that *hub) publish(room entity.Room) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for sub := range that.subs[room.ID] {
		snapshot := room.Clone()

		select {
		case sub.ch <- &snapshot:
			continue
		default:
		}

		// drop the stale pending snapshot
		select {
		case <-sub.ch:
		default:
		}

		select {
		case sub.ch <- &snapshot:
		default:
		}
	}
}

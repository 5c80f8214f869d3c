package radio

import (
	"sync"

	"github.com/valkyrion/radiobot/internal/repository"
)

// SessionUpdate is emitted on every successful station or volume change.
type SessionUpdate struct {
	GuildID   string              `json:"guildId"`
	Station   *repository.Station `json:"currentStation"`
	IsPlaying bool                `json:"isPlaying"`
	Volume    int                 `json:"volume"`
}

// StatusUpdate is emitted on gateway connect/disconnect and global
// playback transitions.
type StatusUpdate struct {
	IsOnline         bool  `json:"isOnline"`
	IsPlaying        bool  `json:"isPlaying"`
	CurrentStationID int64 `json:"currentStationId,omitempty"`
}

// Subscriber receives core events. Implementations must not block; the
// broadcast layer fans out on its own goroutines.
type Subscriber interface {
	OnSessionUpdate(SessionUpdate)
	OnStatusUpdate(StatusUpdate)
}

type Emitter struct {
	mu   sync.RWMutex
	subs []Subscriber
}

func NewEmitter() *Emitter { return &Emitter{} }

func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

func (e *Emitter) SessionUpdate(u SessionUpdate) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.subs {
		s.OnSessionUpdate(u)
	}
}

func (e *Emitter) StatusUpdate(u StatusUpdate) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.subs {
		s.OnStatusUpdate(u)
	}
}

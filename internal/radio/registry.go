package radio

import (
	"log/slog"
	"sync"
	"time"
)

// IdleThreshold is how long a non-playing session may sit untouched before
// the cleanup sweep removes it.
const IdleThreshold = 5 * time.Minute

// Registry owns every per-guild session. All cross-guild state lives here;
// sessions themselves never know about each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

// CreateOrReplace installs a session for the guild. Callers check Get first;
// setup stays idempotent by not re-creating live sessions. A replaced
// session is torn down.
func (r *Registry) CreateOrReplace(guildID, voiceChannelID, controlChannelID string, conn VoiceConn, player AudioPlayer, volume int) *Session {
	sess := newSession(guildID, voiceChannelID, controlChannelID, conn, player, volume)

	r.mu.Lock()
	old := r.sessions[guildID]
	r.sessions[guildID] = sess
	r.mu.Unlock()

	if old != nil {
		slog.Warn("replacing live session", "guildID", guildID)
		old.teardown()
	}
	return sess
}

// Remove destroys the guild's connection and player and drops the entry.
// No-op for guilds without a session.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	sess := r.sessions[guildID]
	delete(r.sessions, guildID)
	r.mu.Unlock()

	if sess == nil {
		return
	}
	sess.teardown()
	slog.Info("session removed", "guildID", guildID)
}

// SweepIdle removes sessions that are not playing and have been inactive
// longer than threshold. Playing sessions are never evicted. Returns how
// many were removed.
func (r *Registry) SweepIdle(threshold time.Duration) int {
	cutoff := time.Now().Add(-threshold)

	r.mu.Lock()
	var victims []string
	for gid, sess := range r.sessions {
		if !sess.IsPlaying() && sess.LastActivity().Before(cutoff) {
			victims = append(victims, gid)
		}
	}
	r.mu.Unlock()

	for _, gid := range victims {
		slog.Info("evicting idle session", "guildID", gid)
		r.Remove(gid)
	}
	return len(victims)
}

func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for gid := range r.sessions {
		out = append(out, gid)
	}
	return out
}

// Snapshot returns the current sessions. The slice is a copy; the sessions
// are live.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

package radio

import (
	"sync"
	"time"

	"github.com/valkyrion/radiobot/internal/repository"
)

const DefaultVolume = 75

// Session is one guild's bundle of voice connection, audio player, and
// playback state. The connection and player are exclusively owned: at most
// one of each is live per guild at any time.
type Session struct {
	GuildID string

	mu               sync.Mutex
	voiceChannelID   string
	controlChannelID string
	conn             VoiceConn
	player           AudioPlayer
	resource         AudioResource
	current          *repository.Station
	playing          bool
	volume           int
	lastActivity     time.Time
	notificationID   string
}

func newSession(guildID, voiceChannelID, controlChannelID string, conn VoiceConn, player AudioPlayer, volume int) *Session {
	if volume < 0 || volume > 200 {
		volume = DefaultVolume
	}
	return &Session{
		GuildID:          guildID,
		voiceChannelID:   voiceChannelID,
		controlChannelID: controlChannelID,
		conn:             conn,
		player:           player,
		volume:           volume,
		lastActivity:     time.Now(),
	}
}

func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

func (s *Session) ControlChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlChannelID
}

func (s *Session) Conn() VoiceConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) Player() AudioPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Session) Current() *repository.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) SetVolume(percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = percent
	s.lastActivity = time.Now()
}

// SetStopped clears the playing flag but keeps the current station so a
// later restore knows what to resume.
func (s *Session) SetStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.lastActivity = time.Now()
}

func (s *Session) setPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = playing
	s.lastActivity = time.Now()
}

// commitStation swaps in the new resource and station after playback has
// started. The previous resource is closed outside the lock.
func (s *Session) commitStation(st *repository.Station, res AudioResource) {
	s.mu.Lock()
	old := s.resource
	s.resource = res
	s.current = st
	s.playing = true
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if old != nil && old != res {
		old.Close()
	}
}

func (s *Session) Resource() AudioResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resource
}

// replaceTransport installs a freshly built connection and player, used
// when restoring a session across a partial restart.
func (s *Session) replaceTransport(conn VoiceConn, player AudioPlayer) {
	s.mu.Lock()
	oldConn, oldRes := s.conn, s.resource
	s.conn = conn
	s.player = player
	s.resource = nil
	s.mu.Unlock()

	if oldRes != nil {
		oldRes.Close()
	}
	if oldConn != nil {
		oldConn.Destroy()
	}
}

// resetPlayback clears the playing flag and current station, used when a
// restore attempt fails and the stale flags would otherwise lie.
func (s *Session) resetPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.current = nil
}

// takeNotification swaps the outstanding now-playing message id, returning
// the previous one so the caller can delete it. At most one notification
// is live per session.
func (s *Session) takeNotification(newID string) (oldID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldID = s.notificationID
	s.notificationID = newID
	return oldID
}

// teardown releases everything the session owns. Called by the registry
// with the session already unlinked.
func (s *Session) teardown() {
	s.mu.Lock()
	conn, player, res := s.conn, s.player, s.resource
	s.conn = nil
	s.player = nil
	s.resource = nil
	s.playing = false
	s.mu.Unlock()

	if player != nil {
		player.Stop()
	}
	if res != nil {
		res.Close()
	}
	if conn != nil {
		conn.Destroy()
	}
}

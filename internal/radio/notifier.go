package radio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/valkyrion/radiobot/internal/repository"
)

// debounceWindow bounds how often the now-playing message may be rewritten
// per guild.
const debounceWindow = 3 * time.Second

type pendingNotice struct {
	timer   *time.Timer
	station *repository.Station
}

// Notifier posts the per-guild now-playing message. The window is anchored
// at the last render: a change outside it posts immediately, changes inside
// it collapse into one update at the window's end, so the channel sees the
// station that actually stuck without the render ever starving.
type Notifier struct {
	registry *Registry
	channels ChannelIO
	members  MemberResolver
	recorder ListenerRecorder
	window   time.Duration
	deletes  *rate.Limiter

	mu         sync.Mutex
	lastRender map[string]time.Time
	pending    map[string]*pendingNotice
}

func NewNotifier(registry *Registry, channels ChannelIO, members MemberResolver, recorder ListenerRecorder) *Notifier {
	return &Notifier{
		registry: registry,
		channels: channels,
		members:  members,
		recorder: recorder,
		window:   debounceWindow,
		// Message deletions share a budget so a burst of station changes
		// across guilds cannot trip Discord's rate limits.
		deletes:    rate.NewLimiter(rate.Every(time.Second), 2),
		lastRender: make(map[string]time.Time),
		pending:    make(map[string]*pendingNotice),
	}
}

// NotifyStationChange posts or schedules a now-playing update for the
// session's control channel. At most one update is pending per guild, timed
// for the end of the current window.
func (n *Notifier) NotifyStationChange(sess *Session, st *repository.Station) {
	guildID := sess.GuildID

	n.mu.Lock()
	if prev, ok := n.pending[guildID]; ok {
		// A render is already due at the window's end; it picks up the
		// newer station.
		prev.station = st
		n.mu.Unlock()
		return
	}

	now := time.Now()
	elapsed := now.Sub(n.lastRender[guildID])
	if elapsed >= n.window {
		n.lastRender[guildID] = now
		n.mu.Unlock()
		go n.render(guildID, st)
		return
	}

	p := &pendingNotice{station: st}
	p.timer = time.AfterFunc(n.window-elapsed, func() { n.fire(guildID, p) })
	n.pending[guildID] = p
	n.mu.Unlock()
}

func (n *Notifier) fire(guildID string, p *pendingNotice) {
	n.mu.Lock()
	if n.pending[guildID] != p {
		// Discarded while the timer was in flight.
		n.mu.Unlock()
		return
	}
	delete(n.pending, guildID)
	n.lastRender[guildID] = time.Now()
	st := p.station
	n.mu.Unlock()

	n.render(guildID, st)
}

// render posts the update now. Sessions torn down since the change was
// recorded get no message.
func (n *Notifier) render(guildID string, st *repository.Station) {
	sess := n.registry.Get(guildID)
	if sess == nil {
		return
	}
	n.send(sess, st)
}

func (n *Notifier) send(sess *Session, st *repository.Station) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	channelID := sess.ControlChannelID()
	if channelID == "" {
		return
	}

	listeners := 0
	if n.members != nil {
		listeners = n.members.NonBotListeners(sess.GuildID, sess.VoiceChannelID())
	}
	if n.recorder != nil {
		if err := n.recorder.UpdateListeners(ctx, st.ID, listeners); err != nil {
			slog.Debug("could not record listener count", "stationID", st.ID, "err", err)
		}
	}

	msgID, err := n.channels.SendNowPlaying(ctx, channelID, st, listeners)
	if err != nil {
		slog.Warn("failed to send now playing message", "guildID", sess.GuildID, "err", err)
		return
	}

	if oldID := sess.takeNotification(msgID); oldID != "" {
		if err := n.deletes.Wait(ctx); err == nil {
			// Already-deleted messages are fine; the channel just stays clean
			// on a best-effort basis.
			if err := n.channels.DeleteMessage(ctx, channelID, oldID); err != nil {
				slog.Debug("could not delete previous now playing message", "guildID", sess.GuildID, "err", err)
			}
		}
	}
}

// DiscardOrphans drops pending timers and window state for guilds the
// registry no longer tracks. Run from the cleanup sweep.
func (n *Notifier) DiscardOrphans(registry *Registry) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	dropped := 0
	for gid, p := range n.pending {
		if registry.Get(gid) == nil {
			p.timer.Stop()
			delete(n.pending, gid)
			dropped++
		}
	}
	for gid := range n.lastRender {
		if registry.Get(gid) == nil {
			delete(n.lastRender, gid)
		}
	}
	return dropped
}

// Discard drops any pending update for the guild, used when its session is
// removed.
func (n *Notifier) Discard(guildID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.pending[guildID]; ok {
		p.timer.Stop()
		delete(n.pending, guildID)
	}
	delete(n.lastRender, guildID)
}

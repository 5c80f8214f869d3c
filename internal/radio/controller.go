package radio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/valkyrion/radiobot/internal/repository"
)

const (
	MinVolume = 0
	MaxVolume = 200
)

// DeniedError carries the user-facing reason for a refused control request.
// errors.Is(err, ErrAccessDenied) matches it.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string        { return e.Reason }
func (e *DeniedError) Is(target error) bool { return target == ErrAccessDenied }

// Status is a point-in-time view of one guild's session for status commands
// and the dashboard relay.
type Status struct {
	HasSession     bool
	Station        *repository.Station
	IsPlaying      bool
	Volume         int
	Listeners      int
	VoiceChannelID string
	QualityKbps    int
}

// Controller is the control surface the Discord handlers call into. User
// identity gates playback control; an empty userID means system authority.
type Controller struct {
	registry *Registry
	guard    *AccessGuard
	player   *StationPlayer
	emitter  *Emitter

	gateway  VoiceGateway
	pipeline AudioPipeline
	channels ChannelIO
	members  MemberResolver
	stations StationStore
	guilds   GuildStore
	hook     StateHook

	supervisor *Supervisor
}

type ControllerDeps struct {
	Registry   *Registry
	Guard      *AccessGuard
	Player     *StationPlayer
	Emitter    *Emitter
	Gateway    VoiceGateway
	Pipeline   AudioPipeline
	Channels   ChannelIO
	Members    MemberResolver
	Stations   StationStore
	Guilds     GuildStore
	Hook       StateHook
	Supervisor *Supervisor
}

func NewController(d ControllerDeps) *Controller {
	return &Controller{
		registry:   d.Registry,
		guard:      d.Guard,
		player:     d.Player,
		emitter:    d.Emitter,
		gateway:    d.Gateway,
		pipeline:   d.Pipeline,
		channels:   d.Channels,
		members:    d.Members,
		stations:   d.Stations,
		guilds:     d.Guilds,
		hook:       d.Hook,
		supervisor: d.Supervisor,
	}
}

// Setup provisions the guild's channels, joins voice, and registers a
// session. Idempotent: a guild with a live session is returned as is.
func (c *Controller) Setup(ctx context.Context, guildID string) (*Session, error) {
	if sess := c.registry.Get(guildID); sess != nil {
		if conn := sess.Conn(); conn != nil && conn.State() != ConnDestroyed {
			return sess, nil
		}
	}

	voiceChannelID, controlChannelID, err := c.channels.EnsureGuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("ensure channels: %w", err)
	}

	conn, err := c.gateway.JoinChannel(ctx, guildID, voiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("join voice channel: %w", err)
	}
	player, err := c.pipeline.NewPlayer(guildID, conn, c.hook)
	if err != nil {
		conn.Destroy()
		return nil, fmt.Errorf("create player: %w", err)
	}

	volume := DefaultVolume
	if g, err := c.guilds.GetGuild(ctx, guildID); err != nil {
		slog.Warn("could not load stored volume", "guildID", guildID, "err", err)
	} else if g != nil && g.Volume >= MinVolume && g.Volume <= MaxVolume {
		volume = g.Volume
	}

	sess := c.registry.CreateOrReplace(guildID, voiceChannelID, controlChannelID, conn, player, volume)
	slog.Info("guild set up", "guildID", guildID, "voiceChannel", voiceChannelID, "volume", volume)
	return sess, nil
}

// PlayStation resolves the station and switches the guild to it. A non-empty
// userID is checked against the access guard first; denial leaves the
// session untouched.
func (c *Controller) PlayStation(ctx context.Context, guildID string, stationID int64, userID string) error {
	if userID != "" {
		if d := c.guard.CanControl(guildID, userID); !d.Allowed() {
			return &DeniedError{Reason: d.Message}
		}
	}

	st, err := c.stations.GetStation(ctx, stationID)
	if err != nil {
		return fmt.Errorf("load station %d: %w", stationID, err)
	}
	if st == nil {
		return fmt.Errorf("%w: id %d", ErrStationNotFound, stationID)
	}

	if c.registry.Get(guildID) == nil {
		if _, err := c.Setup(ctx, guildID); err != nil {
			return err
		}
	}
	return c.player.PlayStation(ctx, guildID, st)
}

// SetVolume sets the guild's volume, clamped to [0, 200]. The live resource
// is adjusted in place when it supports inline gain; the value always sticks
// on the session and is persisted for the next boot.
func (c *Controller) SetVolume(ctx context.Context, guildID string, percent int, userID string) error {
	if userID != "" {
		if d := c.guard.CanControl(guildID, userID); !d.Allowed() {
			return &DeniedError{Reason: d.Message}
		}
	}

	sess := c.registry.Get(guildID)
	if sess == nil {
		return ErrSessionNotFound
	}

	if percent < MinVolume {
		percent = MinVolume
	} else if percent > MaxVolume {
		percent = MaxVolume
	}

	sess.SetVolume(percent)
	if res := sess.Resource(); res != nil {
		if !res.SetVolume(percent) {
			slog.Warn("stream has no inline volume control, new volume applies to next stream", "guildID", guildID)
		}
	}

	if err := c.guilds.SaveVolume(ctx, guildID, percent); err != nil {
		slog.Warn("failed to persist volume", "guildID", guildID, "err", err)
	}

	c.emitter.SessionUpdate(SessionUpdate{
		GuildID:   guildID,
		Station:   sess.Current(),
		IsPlaying: sess.IsPlaying(),
		Volume:    percent,
	})
	slog.Info("volume changed", "guildID", guildID, "volume", percent)
	return nil
}

// GetStatus reports the guild's session state. HasSession false means the
// rest of the fields are zero.
func (c *Controller) GetStatus(guildID string) Status {
	sess := c.registry.Get(guildID)
	if sess == nil {
		return Status{}
	}

	st := Status{
		HasSession:     true,
		Station:        sess.Current(),
		IsPlaying:      sess.IsPlaying(),
		Volume:         sess.Volume(),
		VoiceChannelID: sess.VoiceChannelID(),
	}
	if c.members != nil {
		st.Listeners = c.members.NonBotListeners(guildID, sess.VoiceChannelID())
	}
	if c.supervisor != nil {
		st.QualityKbps = c.supervisor.QualityFor(guildID)
	}
	return st
}

// StopAll stops playback in every guild. Sessions and voice connections stay
// alive so playback can restart without re-setup.
func (c *Controller) StopAll() {
	for _, sess := range c.registry.Snapshot() {
		if player := sess.Player(); player != nil {
			player.Stop()
		}
		if res := sess.Resource(); res != nil {
			res.Close()
		}
		sess.setPlaying(false)
		slog.Info("stopped stream", "guildID", sess.GuildID)
	}
	c.emitter.StatusUpdate(StatusUpdate{IsOnline: c.members != nil && c.members.Online()})
}

// RestartAll stops every stream and replays each guild's current station.
// Guilds that were not playing stay stopped.
func (c *Controller) RestartAll(ctx context.Context) {
	type replay struct {
		guildID string
		station *repository.Station
	}
	var replays []replay
	for _, sess := range c.registry.Snapshot() {
		if sess.IsPlaying() && sess.Current() != nil {
			replays = append(replays, replay{sess.GuildID, sess.Current()})
		}
	}

	c.StopAll()

	for _, r := range replays {
		if err := c.player.PlayStation(ctx, r.guildID, r.station); err != nil {
			slog.Error("restart failed", "guildID", r.guildID, "station", r.station.Name, "err", err)
		}
	}
	slog.Info("restarted streams", "guilds", len(replays))
}

// SetSupervisor wires the supervisor after construction. The supervisor and
// controller reference each other indirectly through the restorer, so one of
// the edges is set late.
func (c *Controller) SetSupervisor(s *Supervisor) {
	c.supervisor = s
}

package radio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkyrion/radiobot/internal/repository"
)

const (
	// readyTimeout bounds the wait for a voice connection to become usable.
	readyTimeout = 30 * time.Second
	// stopSettle gives a force-stopped player time to flush before the next
	// stream starts on the same connection.
	stopSettle = 100 * time.Millisecond
)

// StationPlayer drives one station change end to end: readiness, stop,
// resource build, start, persistence, notification, event.
type StationPlayer struct {
	registry *Registry
	pipeline AudioPipeline
	guilds   GuildStore
	stations StationStore
	notifier *Notifier
	emitter  *Emitter
}

func NewStationPlayer(registry *Registry, pipeline AudioPipeline, guilds GuildStore, stations StationStore, notifier *Notifier, emitter *Emitter) *StationPlayer {
	return &StationPlayer{
		registry: registry,
		pipeline: pipeline,
		guilds:   guilds,
		stations: stations,
		notifier: notifier,
		emitter:  emitter,
	}
}

// PlayStation switches the guild's session to the given station. On error
// before playback starts, the session's previous state is left intact except
// that isPlaying is false. Persistence and notification failures are
// contained and never fail the switch.
func (p *StationPlayer) PlayStation(ctx context.Context, guildID string, st *repository.Station) error {
	sess := p.registry.Get(guildID)
	if sess == nil {
		return ErrSessionNotFound
	}

	conn := sess.Conn()
	if conn == nil {
		return ErrSessionNotFound
	}
	if err := conn.WaitReady(ctx, readyTimeout); err != nil {
		slog.Warn("voice connection not ready", "guildID", guildID, "station", st.Name, "err", err)
		return fmt.Errorf("%w: %v", ErrConnectionNotReady, err)
	}

	// The wait may have outlived the session.
	if p.registry.Get(guildID) != sess {
		slog.Info("session changed while waiting for voice; abort", "guildID", guildID)
		return ErrSessionNotFound
	}

	// Exclusive playback per guild: whatever is playing stops first.
	if player := sess.Player(); player != nil && player.State() != PlayIdle {
		player.Stop()
		time.Sleep(stopSettle)
	}
	sess.setPlaying(false)

	if p.registry.Get(guildID) != sess {
		slog.Info("session changed while stopping; abort", "guildID", guildID)
		return ErrSessionNotFound
	}

	res, err := p.pipeline.NewResource(ctx, st.URL)
	if err != nil {
		return fmt.Errorf("create stream for %q: %w", st.Name, err)
	}
	if !res.SetVolume(sess.Volume()) {
		slog.Warn("stream has no inline volume control, playing at native level", "guildID", guildID, "station", st.Name)
	}

	player := sess.Player()
	if player == nil || p.registry.Get(guildID) != sess {
		res.Close()
		slog.Info("session changed while preparing; abort", "guildID", guildID)
		return ErrSessionNotFound
	}
	if err := player.Play(res); err != nil {
		res.Close()
		return fmt.Errorf("start playback of %q: %w", st.Name, err)
	}

	sess.commitStation(st, res)
	slog.Info("now playing", "guildID", guildID, "station", st.Name, "url", st.URL)

	p.persistLastPlayed(ctx, guildID, st)

	if p.notifier != nil {
		p.notifier.NotifyStationChange(sess, st)
	}

	if p.emitter != nil {
		p.emitter.SessionUpdate(SessionUpdate{
			GuildID:   guildID,
			Station:   st,
			IsPlaying: true,
			Volume:    sess.Volume(),
		})
	}
	return nil
}

// persistLastPlayed is best effort. A station id the store no longer knows is
// skipped; a write failure is logged and playback continues.
func (p *StationPlayer) persistLastPlayed(ctx context.Context, guildID string, st *repository.Station) {
	known, err := p.stations.GetStation(ctx, st.ID)
	if err != nil {
		slog.Warn("could not verify station before persisting", "guildID", guildID, "stationID", st.ID, "err", err)
		return
	}
	if known == nil {
		slog.Warn("station not in store, skipping last-played persist", "guildID", guildID, "stationID", st.ID)
		return
	}
	if err := p.guilds.SaveLastPlayedStation(ctx, guildID, st.ID); err != nil {
		slog.Warn("failed to persist last played station", "guildID", guildID, "stationID", st.ID, "err", err)
	}
}

package radio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkyrion/radiobot/internal/repository"
)

// resumeGrace lets voice state settle after the gateway comes up before
// deciding which guilds still have listeners.
const resumeGrace = 3 * time.Second

// Resume brings playback back after startup and after per-guild voice drops.
// Everything here runs with system authority; the access guard is not
// consulted.
type Resume struct {
	registry         *Registry
	gateway          VoiceGateway
	pipeline         AudioPipeline
	guilds           GuildStore
	stations         StationStore
	members          MemberResolver
	player           *StationPlayer
	hook             StateHook
	defaultStationID int64
	grace            time.Duration
}

func NewResume(registry *Registry, gateway VoiceGateway, pipeline AudioPipeline, guilds GuildStore, stations StationStore, members MemberResolver, player *StationPlayer, hook StateHook, defaultStationID int64) *Resume {
	return &Resume{
		registry:         registry,
		gateway:          gateway,
		pipeline:         pipeline,
		guilds:           guilds,
		stations:         stations,
		members:          members,
		player:           player,
		hook:             hook,
		defaultStationID: defaultStationID,
		grace:            resumeGrace,
	}
}

// ResumeAll restarts streaming for every guild whose bound voice channel has
// human listeners. Guilds without listeners are left idle; per-guild failures
// do not stop the loop.
func (r *Resume) ResumeAll(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.grace):
	}

	resumed := 0
	for _, gid := range r.members.GuildIDs() {
		sess := r.registry.Get(gid)
		if sess == nil {
			continue
		}
		if r.members.NonBotListeners(gid, sess.VoiceChannelID()) == 0 {
			continue
		}

		st, err := r.stationFor(ctx, gid)
		if err != nil {
			slog.Warn("cannot pick resume station", "guildID", gid, "err", err)
			continue
		}
		if st == nil {
			continue
		}

		if err := r.player.PlayStation(ctx, gid, st); err != nil {
			slog.Error("auto-resume failed", "guildID", gid, "station", st.Name, "err", err)
			continue
		}
		slog.Info("auto-resumed streaming", "guildID", gid, "station", st.Name)
		resumed++
	}

	if resumed > 0 {
		slog.Info("auto-resume complete", "guilds", resumed)
	}
}

// stationFor picks the guild's last played station, falling back to the
// default station when there is no usable record.
func (r *Resume) stationFor(ctx context.Context, guildID string) (*repository.Station, error) {
	st, err := r.guilds.GetLastPlayedStation(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return st, nil
	}
	return r.stations.GetStation(ctx, r.defaultStationID)
}

// RestoreSession rebuilds a guild's voice connection and player in place,
// then resumes the station it was playing. On failure the playing flags are
// cleared so status stops lying.
func (r *Resume) RestoreSession(ctx context.Context, guildID string) error {
	sess := r.registry.Get(guildID)
	if sess == nil {
		return ErrSessionNotFound
	}

	wasPlaying := sess.IsPlaying()
	station := sess.Current()
	voiceChannelID := sess.VoiceChannelID()

	conn, err := r.gateway.JoinChannel(ctx, guildID, voiceChannelID)
	if err != nil {
		sess.resetPlayback()
		return fmt.Errorf("rejoin voice channel: %w", err)
	}
	player, err := r.pipeline.NewPlayer(guildID, conn, r.hook)
	if err != nil {
		conn.Destroy()
		sess.resetPlayback()
		return fmt.Errorf("recreate player: %w", err)
	}
	sess.replaceTransport(conn, player)

	if !wasPlaying || station == nil {
		return nil
	}
	if err := r.player.PlayStation(ctx, guildID, station); err != nil {
		sess.resetPlayback()
		return fmt.Errorf("resume %q: %w", station.Name, err)
	}
	return nil
}

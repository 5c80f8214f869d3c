package radio

import (
	"context"
	"time"

	"github.com/valkyrion/radiobot/internal/repository"
)

// StationStore and GuildStore are the slices of the repository the core
// needs. Absent rows come back as (nil, nil); the core never treats a
// dangling reference as fatal.
type StationStore interface {
	GetStation(ctx context.Context, id int64) (*repository.Station, error)
	GetAllStations(ctx context.Context) ([]repository.Station, error)
}

// ListenerRecorder persists per-station listener counts for the dashboard.
type ListenerRecorder interface {
	UpdateListeners(ctx context.Context, stationID int64, listeners int) error
}

type GuildStore interface {
	GetGuild(ctx context.Context, id string) (*repository.Guild, error)
	GetLastPlayedStation(ctx context.Context, guildID string) (*repository.Station, error)
	SaveLastPlayedStation(ctx context.Context, guildID string, stationID int64) error
	SaveVolume(ctx context.Context, guildID string, volume int) error
}

type ConnState int

const (
	ConnSignalling ConnState = iota
	ConnConnecting
	ConnReady
	ConnDisconnected
	ConnDestroyed
)

// VoiceConn is one guild's live voice connection. Exactly one per session.
type VoiceConn interface {
	// WaitReady blocks until the connection is usable or the timeout
	// elapses. The underlying join may still complete afterwards.
	WaitReady(ctx context.Context, timeout time.Duration) error
	State() ConnState
	ChannelID() string
	Destroy()
}

type VoiceGateway interface {
	JoinChannel(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// GatewayController is the supervisor's handle on the Discord gateway
// connection as a whole.
type GatewayController interface {
	Online() bool
	Reconnect(ctx context.Context) error
	Restart(ctx context.Context) error
}

type PlayState int

const (
	PlayIdle PlayState = iota
	PlayBuffering
	PlayPlaying
	PlayPaused
	PlayAutoPaused
)

// AudioResource is one playable stream with optional inline volume.
// SetVolume reports false when the resource cannot adjust gain; playback
// then proceeds at the source's native level.
type AudioResource interface {
	SetVolume(percent int) bool
	Close()
}

// AudioPlayer owns playback of one resource at a time. Stop is synchronous
// from the caller's perspective.
type AudioPlayer interface {
	Play(res AudioResource) error
	Stop()
	State() PlayState
}

// StateHook observes player transitions. err is non-nil only for upstream
// stream failures that forced the transition. Hooks run on the player's
// goroutine and must not call back into it synchronously.
type StateHook func(guildID string, state PlayState, err error)

type AudioPipeline interface {
	NewResource(ctx context.Context, url string) (AudioResource, error)
	NewPlayer(guildID string, conn VoiceConn, hook StateHook) (AudioPlayer, error)
}

// ChannelIO covers the text-channel side: the now-playing notification and
// channel provisioning during setup.
type ChannelIO interface {
	EnsureGuildChannels(ctx context.Context, guildID string) (voiceChannelID, controlChannelID string, err error)
	SendNowPlaying(ctx context.Context, channelID string, st *repository.Station, listeners int) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// MemberResolver answers voice-presence questions from gateway state.
type MemberResolver interface {
	Online() bool
	GuildIDs() []string
	MemberCount(guildID string) int
	// UserVoiceChannel reports the channel the user currently sits in.
	UserVoiceChannel(guildID, userID string) (channelID string, ok bool)
	// BotVoiceChannel reports the bot's current channel and its name.
	BotVoiceChannel(guildID string) (channelID, channelName string, ok bool)
	// NonBotListeners counts human occupants of a voice channel.
	NonBotListeners(guildID, channelID string) int
}

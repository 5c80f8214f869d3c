package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/valkyrion/radiobot/internal/radio"
	"github.com/valkyrion/radiobot/internal/repository"
	"github.com/valkyrion/radiobot/internal/ui"
)

const (
	voiceChannelName   = "📻｜Radio Hub"
	controlChannelName = "radio-control"
)

// voiceConn adapts a discordgo voice connection to the core's VoiceConn.
type voiceConn struct {
	vc *discordgo.VoiceConnection

	mu        sync.Mutex
	everReady bool
	destroyed bool
}

func newVoiceConn(vc *discordgo.VoiceConnection) *voiceConn {
	return &voiceConn{vc: vc}
}

// WaitReady polls the connection's ready flag; discordgo flips it once the
// voice websocket and UDP handshake finish.
func (c *voiceConn) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.vc != nil && c.vc.Ready {
			c.mu.Lock()
			c.everReady = true
			c.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("voice connection not ready after %s", timeout)
}

func (c *voiceConn) State() radio.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.destroyed || c.vc == nil:
		return radio.ConnDestroyed
	case c.vc.Ready:
		c.everReady = true
		return radio.ConnReady
	case c.everReady:
		return radio.ConnDisconnected
	default:
		return radio.ConnConnecting
	}
}

func (c *voiceConn) ChannelID() string {
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}

func (c *voiceConn) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	if c.vc == nil {
		return
	}
	_ = c.vc.Speaking(false)
	_ = c.vc.Disconnect()
}

// Unwrap exposes the raw connection for the audio pipeline.
func (c *voiceConn) Unwrap() *discordgo.VoiceConnection {
	return c.vc
}

// discordAdapter implements the core's gateway-facing collaborator
// interfaces over one discordgo session.
type discordAdapter struct {
	session *discordgo.Session
}

func newDiscordAdapter(s *discordgo.Session) *discordAdapter {
	return &discordAdapter{session: s}
}

func (a *discordAdapter) JoinChannel(ctx context.Context, guildID, channelID string) (radio.VoiceConn, error) {
	vc, err := a.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return newVoiceConn(vc), nil
}

// EnsureGuildChannels finds or creates the radio voice and control channels.
func (a *discordAdapter) EnsureGuildChannels(ctx context.Context, guildID string) (string, string, error) {
	channels, err := a.session.GuildChannels(guildID)
	if err != nil {
		return "", "", fmt.Errorf("list channels: %w", err)
	}

	var voiceID, controlID string
	for _, ch := range channels {
		switch {
		case ch.Type == discordgo.ChannelTypeGuildVoice && ch.Name == voiceChannelName:
			voiceID = ch.ID
		case ch.Type == discordgo.ChannelTypeGuildText && ch.Name == controlChannelName:
			controlID = ch.ID
		}
	}

	if voiceID == "" {
		ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name: voiceChannelName,
			Type: discordgo.ChannelTypeGuildVoice,
		})
		if err != nil {
			return "", "", fmt.Errorf("create voice channel: %w", err)
		}
		voiceID = ch.ID
	}
	if controlID == "" {
		ch, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
			Name:  controlChannelName,
			Topic: "Pick a station from the dropdown to control the radio",
			Type:  discordgo.ChannelTypeGuildText,
		})
		if err != nil {
			return "", "", fmt.Errorf("create control channel: %w", err)
		}
		controlID = ch.ID
	}
	return voiceID, controlID, nil
}

func (a *discordAdapter) SendNowPlaying(ctx context.Context, channelID string, st *repository.Station, listeners int) (string, error) {
	msg, err := a.session.ChannelMessageSendEmbed(channelID, ui.NowPlayingEmbed(st, listeners))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (a *discordAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return a.session.ChannelMessageDelete(channelID, messageID)
}

func (a *discordAdapter) Online() bool {
	return a.session != nil && a.session.DataReady
}

func (a *discordAdapter) GuildIDs() []string {
	out := make([]string, 0, len(a.session.State.Guilds))
	for _, g := range a.session.State.Guilds {
		out = append(out, g.ID)
	}
	return out
}

func (a *discordAdapter) MemberCount(guildID string) int {
	g, _ := a.session.State.Guild(guildID)
	if g == nil {
		return 0
	}
	return g.MemberCount
}

func (a *discordAdapter) UserVoiceChannel(guildID, userID string) (string, bool) {
	g, _ := a.session.State.Guild(guildID)
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, vs.ChannelID != ""
		}
	}
	return "", false
}

func (a *discordAdapter) BotVoiceChannel(guildID string) (string, string, bool) {
	if a.session.State.User == nil {
		return "", "", false
	}
	channelID, ok := a.UserVoiceChannel(guildID, a.session.State.User.ID)
	if !ok {
		return "", "", false
	}
	name := voiceChannelName
	if ch, _ := a.session.State.Channel(channelID); ch != nil {
		name = ch.Name
	}
	return channelID, name, true
}

func (a *discordAdapter) NonBotListeners(guildID, channelID string) int {
	g, _ := a.session.State.Guild(guildID)
	if g == nil || channelID == "" {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			m, _ := a.session.State.Member(guildID, vs.UserID)
			if m != nil && m.User != nil && !m.User.Bot {
				n++
			}
		}
	}
	return n
}

package stream

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/valkyrion/radiobot/internal/radio"
)

// Pipeline builds resources and players over ffmpeg + Opus.
type Pipeline struct{}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (Pipeline) NewResource(ctx context.Context, url string) (radio.AudioResource, error) {
	return NewResource(ctx, url)
}

// NewPlayer needs the raw discordgo connection behind the VoiceConn to reach
// its Opus send channel.
func (Pipeline) NewPlayer(guildID string, conn radio.VoiceConn, hook radio.StateHook) (radio.AudioPlayer, error) {
	u, ok := conn.(interface{ Unwrap() *discordgo.VoiceConnection })
	if !ok {
		return nil, fmt.Errorf("connection type %T does not expose a voice connection", conn)
	}
	return NewPlayer(guildID, u.Unwrap(), hook), nil
}

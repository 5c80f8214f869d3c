package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/valkyrion/radiobot/internal/radio"
)

const (
	opusBitrate = 128000
	// sendTimeout bounds how long a frame may wait on the voice websocket
	// before the stream is considered stuck.
	sendTimeout = 200 * time.Millisecond
	stopTimeout = 2 * time.Second
)

// Player pushes one Resource's PCM through Opus into a guild's voice
// connection, paced at 20 ms per frame. One goroutine per live stream.
type Player struct {
	guildID string
	vc      *discordgo.VoiceConnection
	hook    radio.StateHook

	mu     sync.Mutex
	state  radio.PlayState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(guildID string, vc *discordgo.VoiceConnection, hook radio.StateHook) *Player {
	return &Player{
		guildID: guildID,
		vc:      vc,
		hook:    hook,
		state:   radio.PlayIdle,
	}
}

// Play starts streaming the resource, stopping any stream already running on
// this player. The resource must come from this package's pipeline.
func (p *Player) Play(res radio.AudioResource) error {
	r, ok := res.(*Resource)
	if !ok {
		return fmt.Errorf("unsupported resource type %T", res)
	}

	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	enc.SetBitrate(opusBitrate)

	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.state = radio.PlayBuffering
	p.mu.Unlock()
	p.notify(radio.PlayBuffering, nil)

	go p.run(ctx, r, enc, done)
	return nil
}

func (p *Player) run(ctx context.Context, r *Resource, enc *gopus.Encoder, done chan struct{}) {
	var streamErr error
	defer func() {
		_ = p.vc.Speaking(false)
		p.mu.Lock()
		p.state = radio.PlayIdle
		p.mu.Unlock()
		// Notify before releasing Stop so a following Play's transitions
		// cannot interleave with this stream's shutdown.
		p.notify(radio.PlayIdle, streamErr)
		close(done)
	}()

	if err := p.vc.Speaking(true); err != nil {
		slog.Warn("could not set speaking state", "guildID", p.guildID, "err", err)
	}

	pcm := make([]byte, frameBytes)
	shorts := make([]int16, frameSize*channels)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	started := false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.ReadFrame(pcm); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				// Radio streams are endless; an EOF means the upstream or
				// ffmpeg died under us.
				streamErr = fmt.Errorf("upstream stream ended: %s", r.pcm.Stderr())
			} else {
				streamErr = fmt.Errorf("read stream: %w", err)
			}
			return
		}

		if !started {
			started = true
			p.mu.Lock()
			p.state = radio.PlayPlaying
			p.mu.Unlock()
			p.notify(radio.PlayPlaying, nil)
		}

		for i := 0; i < len(shorts); i++ {
			j := i * 2
			shorts[i] = int16(uint16(pcm[j]) | uint16(pcm[j+1])<<8)
		}
		packet, err := enc.Encode(shorts, frameSize, 4000)
		if err != nil {
			streamErr = fmt.Errorf("opus encode: %w", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case p.vc.OpusSend <- packet:
		case <-ctx.Done():
			return
		case <-time.After(sendTimeout):
			streamErr = errors.New("opus send timeout")
			return
		}
	}
}

// Stop halts the current stream and waits for the send loop to exit. No-op
// when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			slog.Warn("player did not stop in time", "guildID", p.guildID)
		}
	}
}

func (p *Player) State() radio.PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) notify(state radio.PlayState, err error) {
	if p.hook != nil {
		p.hook(p.guildID, state, err)
	}
}

package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel, 20 ms at 48k
	// Each 20ms frame is 960 samples/ch * 2 ch * 2 bytes.
	frameBytes = frameSize * channels * 2
)

// Resource is one live radio stream decoded to PCM, with inline volume
// applied as int16 gain scaling. Safe for one concurrent reader; SetVolume
// may be called from any goroutine.
type Resource struct {
	url    string
	pcm    *PCMStreamer
	reader *bufio.Reader

	// volume in percent, 0..200. 100 is unity gain.
	volume atomic.Int32

	closeOnce sync.Once
}

// NewResource starts an ffmpeg subprocess decoding url to s16le 48k stereo.
func NewResource(ctx context.Context, url string) (*Resource, error) {
	pcm, err := StartPCMStream(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("start pcm stream: %w", err)
	}
	r := &Resource{
		url:    url,
		pcm:    pcm,
		reader: bufio.NewReaderSize(pcm.Stdout(), 64*1024),
	}
	r.volume.Store(100)
	return r, nil
}

func (r *Resource) URL() string { return r.url }

// SetVolume adjusts the gain applied to every following frame. Always
// supported for PCM resources.
func (r *Resource) SetVolume(percent int) bool {
	if percent < 0 {
		percent = 0
	} else if percent > 200 {
		percent = 200
	}
	r.volume.Store(int32(percent))
	return true
}

// ReadFrame fills buf (frameBytes long) with one 20 ms gain-adjusted PCM
// frame. io.EOF means the upstream ended; anything else is a stream error.
func (r *Resource) ReadFrame(buf []byte) error {
	if len(buf) != frameBytes {
		return fmt.Errorf("frame buffer must be %d bytes, got %d", frameBytes, len(buf))
	}
	if _, err := io.ReadFull(r.reader, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return err
	}
	r.applyGain(buf)
	return nil
}

// applyGain scales the interleaved s16le samples in place, clipping at the
// int16 bounds.
func (r *Resource) applyGain(buf []byte) {
	vol := int(r.volume.Load())
	if vol == 100 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		s := int(int16(uint16(buf[i]) | uint16(buf[i+1])<<8))
		s = s * vol / 100
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		buf[i] = byte(uint16(s))
		buf[i+1] = byte(uint16(s) >> 8)
	}
}

func (r *Resource) Close() {
	r.closeOnce.Do(func() {
		r.pcm.Close()
	})
}

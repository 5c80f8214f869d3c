package stream

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pcmFrame(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func samplesOf(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return out
}

func TestApplyGainUnityIsUntouched(t *testing.T) {
	r := &Resource{}
	r.volume.Store(100)

	buf := pcmFrame(1000, -1000, 32767, -32768)
	r.applyGain(buf)

	assert.Equal(t, []int16{1000, -1000, 32767, -32768}, samplesOf(buf))
}

func TestApplyGainScalesDown(t *testing.T) {
	r := &Resource{}
	r.volume.Store(50)

	buf := pcmFrame(1000, -2000, 100)
	r.applyGain(buf)

	assert.Equal(t, []int16{500, -1000, 50}, samplesOf(buf))
}

func TestApplyGainClipsAtBounds(t *testing.T) {
	r := &Resource{}
	r.volume.Store(200)

	buf := pcmFrame(30000, -30000, 100)
	r.applyGain(buf)

	assert.Equal(t, []int16{32767, -32768, 200}, samplesOf(buf))
}

func TestApplyGainMutes(t *testing.T) {
	r := &Resource{}
	r.volume.Store(0)

	buf := pcmFrame(12345, -12345)
	r.applyGain(buf)

	assert.Equal(t, []int16{0, 0}, samplesOf(buf))
}

func TestSetVolumeClamps(t *testing.T) {
	r := &Resource{}

	assert.True(t, r.SetVolume(500))
	assert.Equal(t, int32(200), r.volume.Load())

	assert.True(t, r.SetVolume(-3))
	assert.Equal(t, int32(0), r.volume.Load())

	assert.True(t, r.SetVolume(75))
	assert.Equal(t, int32(75), r.volume.Load())
}

func TestReadFrameRejectsWrongBufferSize(t *testing.T) {
	r := &Resource{}
	err := r.ReadFrame(make([]byte, 10))
	assert.Error(t, err)
}

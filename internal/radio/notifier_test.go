package radio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(window time.Duration) (*Notifier, *Registry, *fakeChannelIO, *fakeMembers) {
	registry := NewRegistry()
	channels := &fakeChannelIO{}
	members := newFakeMembers()
	n := NewNotifier(registry, channels, members, nil)
	n.window = window
	return n, registry, channels, members
}

// stampRender backdates the guild into the middle of a window so the next
// change takes the deferred path.
func (n *Notifier) stampRender(guildID string) {
	n.mu.Lock()
	n.lastRender[guildID] = time.Now()
	n.mu.Unlock()
}

func TestNotifierFirstChangeRendersPromptly(t *testing.T) {
	n, registry, channels, _ := newTestNotifier(500 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)

	n.NotifyStationChange(sess, &lofi)

	// Well before the window elapses.
	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) == 1
	}, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "Chill Lofi Radio", channels.sentMessages()[0].station.Name)
}

func TestNotifierCoalescesRapidChanges(t *testing.T) {
	n, registry, channels, _ := newTestNotifier(150 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)

	n.NotifyStationChange(sess, &lofi)
	n.NotifyStationChange(sess, &rock)
	n.NotifyStationChange(sess, &lofi)
	n.NotifyStationChange(sess, &rock)

	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) == 2
	}, time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	sent := channels.sentMessages()
	require.Len(t, sent, 2, "changes inside the window must collapse into one deferred update")
	assert.Equal(t, "Chill Lofi Radio", sent[0].station.Name)
	assert.Equal(t, "Rock Antenne", sent[1].station.Name, "the deferred update carries the station that stuck")
	assert.Equal(t, "cc", sent[0].channelID)
}

func TestNotifierSustainedChangesRenderOncePerWindow(t *testing.T) {
	n, registry, channels, _ := newTestNotifier(150 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)

	// Changes arrive much faster than the window for 400 ms.
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		n.NotifyStationChange(sess, &rock)
		time.Sleep(20 * time.Millisecond)
	}

	// The window anchors at the last render, so the stream of changes must
	// keep producing renders instead of postponing forever.
	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) >= 2
	}, time.Second, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, len(channels.sentMessages()), 4, "at most one render per window")
}

func TestNotifierSeparateWindowsSendSeparately(t *testing.T) {
	n, registry, channels, _ := newTestNotifier(20 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)

	n.NotifyStationChange(sess, &lofi)
	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	n.NotifyStationChange(sess, &rock)
	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) == 2
	}, time.Second, 5*time.Millisecond)

	// The second send replaces the first message.
	require.Eventually(t, func() bool {
		channels.mu.Lock()
		defer channels.mu.Unlock()
		return len(channels.deleted) == 1 && channels.deleted[0] == "msg-1"
	}, time.Second, 5*time.Millisecond)
}

func TestNotifierDropsUpdateForRemovedSession(t *testing.T) {
	n, registry, channels, _ := newTestNotifier(80 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)
	n.stampRender("g1")

	n.NotifyStationChange(sess, &lofi)
	registry.Remove("g1")

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, channels.sentMessages())
}

func TestNotifierDiscardOrphans(t *testing.T) {
	n, registry, _, _ := newTestNotifier(time.Hour)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)
	n.stampRender("g1")

	n.NotifyStationChange(sess, &lofi)
	registry.Remove("g1")

	assert.Equal(t, 1, n.DiscardOrphans(registry))
	assert.Equal(t, 0, n.DiscardOrphans(registry))
}

func TestNotifierReportsListeners(t *testing.T) {
	n, registry, channels, members := newTestNotifier(10 * time.Millisecond)
	sess := registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{}, &fakePlayer{}, DefaultVolume)
	members.listeners["vc"] = 3

	n.NotifyStationChange(sess, &lofi)

	require.Eventually(t, func() bool {
		return len(channels.sentMessages()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, channels.sentMessages()[0].listeners)
}

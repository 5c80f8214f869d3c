package radio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkyrion/radiobot/internal/repository"
)

var (
	lofi = repository.Station{ID: 1, Name: "Chill Lofi Radio", URL: "https://streams.example.com/lofi", Genre: "Chill & Lofi", IsActive: true}
	rock = repository.Station{ID: 2, Name: "Rock Antenne", URL: "https://streams.example.com/rock", Genre: "Rock", IsActive: true}
)

type playerEnv struct {
	registry *Registry
	pipeline *fakePipeline
	guilds   *fakeGuildStore
	stations *fakeStationStore
	sub      *recordingSubscriber
	sp       *StationPlayer
}

func newPlayerEnv(t *testing.T) *playerEnv {
	t.Helper()
	env := &playerEnv{
		registry: NewRegistry(),
		pipeline: &fakePipeline{canAdjust: true},
		guilds:   newFakeGuildStore(),
		stations: newFakeStationStore(lofi, rock),
		sub:      &recordingSubscriber{},
	}
	emitter := NewEmitter()
	emitter.Subscribe(env.sub)
	env.sp = NewStationPlayer(env.registry, env.pipeline, env.guilds, env.stations, nil, emitter)
	return env
}

func (e *playerEnv) addSession(guildID string) (*Session, *fakeConn, *fakePlayer) {
	conn := &fakeConn{state: ConnReady}
	player := &fakePlayer{}
	sess := e.registry.CreateOrReplace(guildID, "vc", "cc", conn, player, DefaultVolume)
	return sess, conn, player
}

func TestPlayStationHappyPath(t *testing.T) {
	env := newPlayerEnv(t)
	sess, conn, player := env.addSession("g1")

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	require.NoError(t, err)
	assert.True(t, conn.waited)
	assert.True(t, sess.IsPlaying())
	assert.Equal(t, "Chill Lofi Radio", sess.Current().Name)
	assert.Equal(t, PlayPlaying, player.State())

	id, ok := env.guilds.savedLastFor("g1")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	updates := env.sub.sessionUpdates()
	require.Len(t, updates, 1)
	assert.Equal(t, "g1", updates[0].GuildID)
	assert.True(t, updates[0].IsPlaying)
	assert.Equal(t, DefaultVolume, updates[0].Volume)
}

func TestPlayStationStopsBeforeStarting(t *testing.T) {
	env := newPlayerEnv(t)
	_, _, player := env.addSession("g1")
	require.NoError(t, env.sp.PlayStation(context.Background(), "g1", &lofi))

	require.NoError(t, env.sp.PlayStation(context.Background(), "g1", &rock))

	calls := player.callOrder()
	// Second switch must stop the live stream before playing the next one.
	require.Equal(t, []string{"play", "stop", "play"}, calls)
}

func TestPlayStationConnectionNotReady(t *testing.T) {
	env := newPlayerEnv(t)
	sess, conn, _ := env.addSession("g1")
	conn.waitErr = errBoom

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	assert.ErrorIs(t, err, ErrConnectionNotReady)
	assert.False(t, sess.IsPlaying())
	assert.Nil(t, sess.Current())
	assert.Empty(t, env.sub.sessionUpdates())
}

func TestPlayStationNoSession(t *testing.T) {
	env := newPlayerEnv(t)
	err := env.sp.PlayStation(context.Background(), "missing", &lofi)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPlayStationAbortsWhenSessionReplacedMidWait(t *testing.T) {
	env := newPlayerEnv(t)
	_, conn, _ := env.addSession("g1")
	conn.onWait = func() {
		env.registry.CreateOrReplace("g1", "vc", "cc", &fakeConn{state: ConnReady}, &fakePlayer{}, DefaultVolume)
	}

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	assert.ErrorIs(t, err, ErrSessionNotFound)
	// The replacement session must be untouched.
	assert.False(t, env.registry.Get("g1").IsPlaying())
}

func TestPlayStationSkipsPersistWhenStationDangling(t *testing.T) {
	env := newPlayerEnv(t)
	sess, _, _ := env.addSession("g1")

	ghost := repository.Station{ID: 99, Name: "Ghost FM", URL: "https://streams.example.com/ghost"}
	err := env.sp.PlayStation(context.Background(), "g1", &ghost)

	require.NoError(t, err)
	assert.True(t, sess.IsPlaying())
	_, ok := env.guilds.savedLastFor("g1")
	assert.False(t, ok, "dangling station id must not be persisted")
}

func TestPlayStationPersistFailureIsNonFatal(t *testing.T) {
	env := newPlayerEnv(t)
	sess, _, _ := env.addSession("g1")
	env.guilds.saveErr = errBoom

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	require.NoError(t, err)
	assert.True(t, sess.IsPlaying())
}

func TestPlayStationResourceFailure(t *testing.T) {
	env := newPlayerEnv(t)
	sess, _, _ := env.addSession("g1")
	env.pipeline.resErr = errBoom

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionNotReady)
	assert.False(t, sess.IsPlaying())
}

func TestPlayStationAppliesSessionVolume(t *testing.T) {
	env := newPlayerEnv(t)
	sess, _, _ := env.addSession("g1")
	sess.SetVolume(150)

	require.NoError(t, env.sp.PlayStation(context.Background(), "g1", &lofi))

	require.Len(t, env.pipeline.resources, 1)
	assert.Equal(t, 150, env.pipeline.resources[0].volume)
}

func TestPlayStationDegradesWithoutInlineVolume(t *testing.T) {
	env := newPlayerEnv(t)
	env.pipeline.canAdjust = false
	sess, _, _ := env.addSession("g1")

	err := env.sp.PlayStation(context.Background(), "g1", &lofi)

	require.NoError(t, err)
	assert.True(t, sess.IsPlaying())
}

func TestPlayStationClosesPreviousResource(t *testing.T) {
	env := newPlayerEnv(t)
	env.addSession("g1")

	require.NoError(t, env.sp.PlayStation(context.Background(), "g1", &lofi))
	require.NoError(t, env.sp.PlayStation(context.Background(), "g1", &rock))

	require.Len(t, env.pipeline.resources, 2)
	assert.True(t, env.pipeline.resources[0].isClosed())
	assert.False(t, env.pipeline.resources[1].isClosed())
}

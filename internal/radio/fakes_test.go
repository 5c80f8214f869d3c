package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valkyrion/radiobot/internal/repository"
)

type fakeStationStore struct {
	mu       sync.Mutex
	stations map[int64]repository.Station
	err      error
}

func newFakeStationStore(stations ...repository.Station) *fakeStationStore {
	s := &fakeStationStore{stations: make(map[int64]repository.Station)}
	for _, st := range stations {
		s.stations[st.ID] = st
	}
	return s
}

func (s *fakeStationStore) GetStation(ctx context.Context, id int64) (*repository.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	st, ok := s.stations[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *fakeStationStore) GetAllStations(ctx context.Context) ([]repository.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]repository.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	return out, nil
}

type fakeGuildStore struct {
	mu          sync.Mutex
	guilds      map[string]repository.Guild
	lastPlayed  map[string]*repository.Station
	savedVolume map[string]int
	savedLast   map[string]int64
	saveErr     error
}

func newFakeGuildStore() *fakeGuildStore {
	return &fakeGuildStore{
		guilds:      make(map[string]repository.Guild),
		lastPlayed:  make(map[string]*repository.Station),
		savedVolume: make(map[string]int),
		savedLast:   make(map[string]int64),
	}
}

func (s *fakeGuildStore) GetGuild(ctx context.Context, id string) (*repository.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *fakeGuildStore) GetLastPlayedStation(ctx context.Context, guildID string) (*repository.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlayed[guildID], nil
}

func (s *fakeGuildStore) SaveLastPlayedStation(ctx context.Context, guildID string, stationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedLast[guildID] = stationID
	return nil
}

func (s *fakeGuildStore) SaveVolume(ctx context.Context, guildID string, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.savedVolume[guildID] = volume
	return nil
}

func (s *fakeGuildStore) savedLastFor(guildID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.savedLast[guildID]
	return id, ok
}

type fakeConn struct {
	mu       sync.Mutex
	state    ConnState
	waitErr  error
	waited   bool
	destroys int
	channel  string
	onWait   func()
}

func (c *fakeConn) WaitReady(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	c.waited = true
	err := c.waitErr
	hook := c.onWait
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (c *fakeConn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeConn) ChannelID() string { return c.channel }

func (c *fakeConn) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroys++
	c.state = ConnDestroyed
}

type fakeGateway struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (g *fakeGateway) JoinChannel(ctx context.Context, guildID, channelID string) (VoiceConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	c := &fakeConn{state: ConnReady, channel: channelID}
	g.conns = append(g.conns, c)
	return c, nil
}

type fakeResource struct {
	mu        sync.Mutex
	volume    int
	canAdjust bool
	closed    bool
}

func (r *fakeResource) SetVolume(percent int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.canAdjust {
		return false
	}
	r.volume = percent
	return true
}

func (r *fakeResource) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeResource) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakePlayer struct {
	mu      sync.Mutex
	state   PlayState
	playErr error
	calls   []string
}

func (p *fakePlayer) Play(res AudioResource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "play")
	if p.playErr != nil {
		return p.playErr
	}
	p.state = PlayPlaying
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "stop")
	p.state = PlayIdle
}

func (p *fakePlayer) State() PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePlayer) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type fakePipeline struct {
	mu        sync.Mutex
	resErr    error
	canAdjust bool
	resources []*fakeResource
	players   []*fakePlayer
}

func (f *fakePipeline) NewResource(ctx context.Context, url string) (AudioResource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resErr != nil {
		return nil, f.resErr
	}
	r := &fakeResource{canAdjust: f.canAdjust}
	f.resources = append(f.resources, r)
	return r, nil
}

func (f *fakePipeline) NewPlayer(guildID string, conn VoiceConn, hook StateHook) (AudioPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePlayer{}
	f.players = append(f.players, p)
	return p, nil
}

type sentMessage struct {
	channelID string
	station   *repository.Station
	listeners int
}

type fakeChannelIO struct {
	mu      sync.Mutex
	sent    []sentMessage
	deleted []string
	nextID  int
	sendErr error
}

func (c *fakeChannelIO) EnsureGuildChannels(ctx context.Context, guildID string) (string, string, error) {
	return "voice-" + guildID, "control-" + guildID, nil
}

func (c *fakeChannelIO) SendNowPlaying(ctx context.Context, channelID string, st *repository.Station, listeners int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.nextID++
	c.sent = append(c.sent, sentMessage{channelID: channelID, station: st, listeners: listeners})
	return fmt.Sprintf("msg-%d", c.nextID), nil
}

func (c *fakeChannelIO) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChannelIO) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

type fakeMembers struct {
	mu        sync.Mutex
	online    bool
	guildIDs  []string
	counts    map[string]int
	userVoice map[string]string // userID -> channelID
	botVoice  string
	botName   string
	listeners map[string]int // channelID -> non-bot count
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		online:    true,
		counts:    make(map[string]int),
		userVoice: make(map[string]string),
		listeners: make(map[string]int),
		botName:   "Radio Hub",
	}
}

func (m *fakeMembers) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMembers) GuildIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.guildIDs...)
}

func (m *fakeMembers) MemberCount(guildID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[guildID]
}

func (m *fakeMembers) UserVoiceChannel(guildID, userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.userVoice[userID]
	return ch, ok && ch != ""
}

func (m *fakeMembers) BotVoiceChannel(guildID string) (string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.botVoice, m.botName, m.botVoice != ""
}

func (m *fakeMembers) NonBotListeners(guildID, channelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners[channelID]
}

type fakeGatewayCtl struct {
	mu         sync.Mutex
	online     bool
	reconnects int
	restarts   int
	recErr     error
}

func (g *fakeGatewayCtl) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

func (g *fakeGatewayCtl) Reconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reconnects++
	return g.recErr
}

func (g *fakeGatewayCtl) Restart(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restarts++
	return nil
}

type recordingSubscriber struct {
	mu       sync.Mutex
	sessions []SessionUpdate
	statuses []StatusUpdate
}

func (r *recordingSubscriber) OnSessionUpdate(u SessionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, u)
}

func (r *recordingSubscriber) OnStatusUpdate(u StatusUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, u)
}

func (r *recordingSubscriber) sessionUpdates() []SessionUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionUpdate(nil), r.sessions...)
}

var errBoom = errors.New("boom")

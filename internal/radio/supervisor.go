package radio

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	heartbeatInterval   = 30 * time.Second
	healthCheckInterval = 2 * time.Minute
	cleanupInterval     = 10 * time.Minute

	// heartbeatStale is how long without a heartbeat before the gateway is
	// presumed wedged and fully restarted.
	heartbeatStale = 2 * time.Minute

	maxReconnectAttempts = 5
	reconnectBackoff     = 5 * time.Second
)

// SessionRestorer rebuilds a guild's voice transport and resumes playback.
// Implemented by the resume coordinator.
type SessionRestorer interface {
	RestoreSession(ctx context.Context, guildID string) error
}

// Supervisor watches gateway liveness and per-guild voice health, escalating
// from rejoin to reconnect to full restart.
type Supervisor struct {
	registry *Registry
	notifier *Notifier
	gateway  GatewayController
	members  MemberResolver
	restorer SessionRestorer
	backoff  time.Duration

	stateMu           sync.Mutex
	lastHeartbeat     time.Time
	reconnectAttempts int
	streamQuality     map[string]int
}

func NewSupervisor(registry *Registry, notifier *Notifier, gateway GatewayController, members MemberResolver, restorer SessionRestorer) *Supervisor {
	return &Supervisor{
		registry:      registry,
		notifier:      notifier,
		gateway:       gateway,
		members:       members,
		restorer:      restorer,
		backoff:       reconnectBackoff,
		lastHeartbeat: time.Now(),
		streamQuality: make(map[string]int),
	}
}

// Run drives the heartbeat, health check, and cleanup timers until ctx is
// cancelled.
func (s *Supervisor) Run(ctx context.Context) {
	heartbeat := time.NewTicker(heartbeatInterval)
	health := time.NewTicker(healthCheckInterval)
	cleanup := time.NewTicker(cleanupInterval)
	defer heartbeat.Stop()
	defer health.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			s.heartbeat()
		case <-health.C:
			s.healthCheck(ctx)
		case <-cleanup.C:
			s.cleanup()
		}
	}
}

// heartbeat records liveness only while the gateway is actually up, so a
// wedged gateway lets the timestamp age into a restart.
func (s *Supervisor) heartbeat() {
	if !s.gateway.Online() {
		return
	}
	s.stateMu.Lock()
	s.lastHeartbeat = time.Now()
	s.stateMu.Unlock()

	slog.Debug("heartbeat",
		"sessions", s.registry.Len(),
		"memoryMB", processMemoryMB())
}

func (s *Supervisor) healthCheck(ctx context.Context) {
	s.stateMu.Lock()
	last := s.lastHeartbeat
	s.stateMu.Unlock()

	if shouldRestart(time.Now(), last) {
		slog.Error("heartbeat stale, restarting gateway", "lastHeartbeat", last)
		if err := s.gateway.Restart(ctx); err != nil {
			slog.Error("gateway restart failed", "err", err)
		}
		return
	}

	if !s.gateway.Online() {
		s.Reconnect(ctx)
		return
	}

	for _, sess := range s.registry.Snapshot() {
		conn := sess.Conn()
		if conn != nil && conn.State() == ConnDisconnected {
			slog.Warn("voice connection lost, restoring", "guildID", sess.GuildID)
			if err := s.restorer.RestoreSession(ctx, sess.GuildID); err != nil {
				slog.Error("voice restore failed", "guildID", sess.GuildID, "err", err)
			}
		}
	}

	s.recomputeQuality()
}

// recomputeQuality refreshes the advisory bitrate tier per guild. The tier
// is informational; streams are not retranscoded mid-flight.
func (s *Supervisor) recomputeQuality() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for _, gid := range s.registry.GuildIDs() {
		s.streamQuality[gid] = QualityTier(s.members.MemberCount(gid))
	}
}

// QualityFor reports the guild's advisory bitrate tier in kbps.
func (s *Supervisor) QualityFor(guildID string) int {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if q, ok := s.streamQuality[guildID]; ok {
		return q
	}
	return QualityTier(0)
}

func (s *Supervisor) cleanup() {
	evicted := s.registry.SweepIdle(IdleThreshold)
	dropped := 0
	if s.notifier != nil {
		dropped = s.notifier.DiscardOrphans(s.registry)
	}

	s.stateMu.Lock()
	for gid := range s.streamQuality {
		if s.registry.Get(gid) == nil {
			delete(s.streamQuality, gid)
		}
	}
	s.stateMu.Unlock()

	if evicted > 0 || dropped > 0 {
		slog.Info("cleanup sweep", "evictedSessions", evicted, "droppedTimers", dropped)
	}
}

// Reconnect tries to re-establish the gateway, giving up into a full restart
// after too many consecutive failures. The attempt counter resets on success
// and after a restart.
func (s *Supervisor) Reconnect(ctx context.Context) {
	s.stateMu.Lock()
	s.reconnectAttempts++
	attempts := s.reconnectAttempts
	s.stateMu.Unlock()

	if shouldGiveUpReconnecting(attempts) {
		slog.Error("too many reconnect attempts, restarting", "attempts", attempts)
		if err := s.gateway.Restart(ctx); err != nil {
			slog.Error("gateway restart failed", "err", err)
			return
		}
		s.resetReconnectAttempts()
		return
	}

	slog.Warn("reconnecting to gateway", "attempt", attempts)
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.backoff):
	}

	// The session layer retries on its own; when it won the race during the
	// backoff there is nothing left to do.
	if s.gateway.Online() {
		s.resetReconnectAttempts()
		slog.Info("gateway recovered during backoff", "attempts", attempts)
		return
	}

	if err := s.gateway.Reconnect(ctx); err != nil {
		slog.Error("reconnect failed", "attempt", attempts, "err", err)
		return
	}
	s.resetReconnectAttempts()
	slog.Info("gateway reconnected", "attempts", attempts)
}

func (s *Supervisor) resetReconnectAttempts() {
	s.stateMu.Lock()
	s.reconnectAttempts = 0
	s.stateMu.Unlock()
}

// shouldRestart reports whether the heartbeat has gone stale.
func shouldRestart(now, lastHeartbeat time.Time) bool {
	return now.Sub(lastHeartbeat) > heartbeatStale
}

// shouldGiveUpReconnecting reports whether the reconnect ladder is exhausted.
func shouldGiveUpReconnecting(attempts int) bool {
	return attempts > maxReconnectAttempts
}

// QualityTier maps guild size to an advisory stream bitrate in kbps.
func QualityTier(memberCount int) int {
	switch {
	case memberCount > 100:
		return 256
	case memberCount > 50:
		return 192
	default:
		return 128
	}
}

func processMemoryMB() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := p.MemoryInfo()
	if err != nil || mem == nil {
		return 0
	}
	return mem.RSS / 1024 / 1024
}

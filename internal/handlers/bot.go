package handlers

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/valkyrion/radiobot/internal/config"
	"github.com/valkyrion/radiobot/internal/radio"
	"github.com/valkyrion/radiobot/internal/repository"
	"github.com/valkyrion/radiobot/internal/stream"
)

type Bot struct {
	cfg     *config.Config
	repo    *repository.Repo
	emitter *radio.Emitter

	session  *discordgo.Session
	adapter  *discordAdapter
	registry *radio.Registry
	ctrl     *radio.Controller
	resume   *radio.Resume
	notifier *radio.Notifier
	sup      *radio.Supervisor
	cmd      *CommandHandler

	readyOnce sync.Once
}

func NewBot(cfg *config.Config, repo *repository.Repo, emitter *radio.Emitter) *Bot {
	return &Bot{
		cfg:      cfg,
		repo:     repo,
		emitter:  emitter,
		registry: radio.NewRegistry(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	b.session = dg
	b.adapter = newDiscordAdapter(dg)
	b.wire()

	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.onReady(ctx, s)
	})
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		b.onGuildCreate(ctx, s, g)
	})
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		b.onGuildDelete(ctx, g)
	})
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		b.onVoiceStateUpdate(s, vs)
	})
	dg.AddHandler(b.cmd.HandleInteraction)
	dg.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		slog.Warn("gateway disconnected")
		b.emitter.StatusUpdate(radio.StatusUpdate{IsOnline: false})
		go b.sup.Reconnect(ctx)
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	go b.sup.Run(ctx)

	<-ctx.Done()
	b.ctrl.StopAll()
	return nil
}

// wire assembles the core around the live session. The supervisor and
// controller share the restorer, so the supervisor edge is set last.
func (b *Bot) wire() {
	pipeline := stream.NewPipeline()
	guard := radio.NewAccessGuard(b.adapter)
	notifier := radio.NewNotifier(b.registry, b.adapter, b.adapter, b.repo)
	player := radio.NewStationPlayer(b.registry, pipeline, b.repo, b.repo, notifier, b.emitter)
	resume := radio.NewResume(b.registry, b.adapter, pipeline, b.repo, b.repo, b.adapter, player, b.onPlayerState, b.cfg.DefaultStationID)
	ctrl := radio.NewController(radio.ControllerDeps{
		Registry: b.registry,
		Guard:    guard,
		Player:   player,
		Emitter:  b.emitter,
		Gateway:  b.adapter,
		Pipeline: pipeline,
		Channels: b.adapter,
		Members:  b.adapter,
		Stations: b.repo,
		Guilds:   b.repo,
		Hook:     b.onPlayerState,
	})
	sup := radio.NewSupervisor(b.registry, notifier, b, b.adapter, resume)
	ctrl.SetSupervisor(sup)

	b.ctrl = ctrl
	b.resume = resume
	b.notifier = notifier
	b.sup = sup
	b.cmd = NewCommandHandler(b.cfg, b.repo, ctrl)
}

func (b *Bot) onReady(ctx context.Context, s *discordgo.Session) {
	slog.Info("connected", "user", s.State.User.Username, "guilds", len(s.State.Guilds))
	appID := s.State.User.ID

	b.updatePresence(s)
	b.emitter.StatusUpdate(radio.StatusUpdate{IsOnline: true})

	b.readyOnce.Do(func() {
		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			}
		} else {
			var wg sync.WaitGroup
			for _, g := range s.State.Guilds {
				wg.Add(1)
				go func(guildID string) {
					defer wg.Done()
					if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
						slog.Error("register guild commands", "guild", guildID, "err", err)
					}
				}(g.ID)
			}
			wg.Wait()

			if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
				slog.Error("clear global commands", "err", err)
			}
		}

		for _, g := range s.State.Guilds {
			b.setupGuild(ctx, s, g.ID, g.Name, g.MemberCount)
		}

		go b.resume.ResumeAll(ctx)
	})
}

// setupGuild provisions channels, joins voice, and builds the control
// interface for one guild. Failures are logged; the bot stays usable in the
// other guilds.
func (b *Bot) setupGuild(ctx context.Context, s *discordgo.Session, guildID, name string, memberCount int) {
	if err := b.repo.UpsertGuild(ctx, guildID, name, memberCount); err != nil {
		slog.Warn("could not upsert guild", "guildID", guildID, "err", err)
	}

	sess, err := b.ctrl.Setup(ctx, guildID)
	if err != nil {
		slog.Error("guild auto-setup failed", "guildID", guildID, "err", err)
		return
	}
	if err := b.repo.SetGuildConnected(ctx, guildID, true); err != nil {
		slog.Warn("could not mark guild connected", "guildID", guildID, "err", err)
	}
	if err := b.repo.SetGuildVoiceChannel(ctx, guildID, sess.VoiceChannelID()); err != nil {
		slog.Warn("could not record voice channel", "guildID", guildID, "err", err)
	}
	if err := b.cmd.SetupRadioInterface(s, sess.ControlChannelID()); err != nil {
		slog.Warn("could not build station dropdowns", "guildID", guildID, "err", err)
	}
}

func (b *Bot) onGuildCreate(ctx context.Context, s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.registry.Get(g.ID) != nil {
		return
	}
	slog.Info("joined guild", "guildID", g.ID, "name", g.Name)

	appID := s.State.User.ID
	if !b.cfg.RegisterCommandsOnBot {
		if err := b.cmd.RegisterCommands(s, appID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	}
	b.setupGuild(ctx, s, g.ID, g.Name, g.MemberCount)
}

func (b *Bot) onGuildDelete(ctx context.Context, g *discordgo.GuildDelete) {
	slog.Info("removed from guild", "guildID", g.ID)
	b.notifier.Discard(g.ID)
	b.registry.Remove(g.ID)
	if err := b.repo.SetGuildConnected(ctx, g.ID, false); err != nil {
		slog.Warn("could not mark guild disconnected", "guildID", g.ID, "err", err)
	}
}

// onVoiceStateUpdate pauses the stream when the bot's channel empties; the
// idle sweep evicts the session later if nobody comes back.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	sess := b.registry.Get(vs.GuildID)
	if sess == nil || !sess.IsPlaying() {
		return
	}
	if b.adapter.NonBotListeners(vs.GuildID, sess.VoiceChannelID()) > 0 {
		return
	}

	slog.Info("voice channel empty, pausing stream", "guildID", vs.GuildID)
	if player := sess.Player(); player != nil {
		player.Stop()
	}
	if res := sess.Resource(); res != nil {
		res.Close()
	}
}

// onPlayerState reacts to player transitions. An idle transition with an
// error means the upstream stream died; the session is marked stopped and
// the supervisor's next health pass can resume it.
func (b *Bot) onPlayerState(guildID string, state radio.PlayState, err error) {
	switch state {
	case radio.PlayIdle:
		if sess := b.registry.Get(guildID); sess != nil {
			sess.SetStopped()
		}
		if err != nil {
			slog.Error("stream ended with error", "guildID", guildID, "err", err)
		}
	case radio.PlayPlaying:
		slog.Debug("stream playing", "guildID", guildID)
	}
}

func (b *Bot) updatePresence(s *discordgo.Session) {
	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{
			{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
		},
	}); err != nil {
		slog.Warn("failed to set presence", "err", err)
	}
}

// Online, Reconnect, and Restart give the supervisor its handle on the
// gateway.
func (b *Bot) Online() bool {
	return b.adapter.Online()
}

func (b *Bot) Reconnect(ctx context.Context) error {
	if err := b.session.Close(); err != nil {
		slog.Warn("gateway close before reconnect", "err", err)
	}
	return b.session.Open()
}

// Restart tears down every session and reopens the gateway from scratch.
// onReady rebuilds the per-guild state.
func (b *Bot) Restart(ctx context.Context) error {
	for _, gid := range b.registry.GuildIDs() {
		b.registry.Remove(gid)
	}
	if err := b.session.Close(); err != nil {
		slog.Warn("gateway close before restart", "err", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}
	b.readyOnce = sync.Once{}
	return b.session.Open()
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

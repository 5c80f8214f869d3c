package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/valkyrion/radiobot/internal/config"
	"github.com/valkyrion/radiobot/internal/radio"
	"github.com/valkyrion/radiobot/internal/repository"
	"github.com/valkyrion/radiobot/internal/ui"
)

type CommandHandler struct {
	cfg  *config.Config
	repo *repository.Repo
	ctrl *radio.Controller
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, ctrl *radio.Controller) *CommandHandler {
	return &CommandHandler{cfg: cfg, repo: repo, ctrl: ctrl}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "radio",
			Description: "Radio controls and info",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "show the radio status for this server"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "dashboard", Description: "link to the web dashboard"},
			},
		},
		{Name: "stations", Description: "List all available radio stations"},
		{Name: "setup", Description: "Set up the radio channels and join voice"},
		{
			Name:        "volume",
			Description: "Set the radio volume for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "level", Description: "0-200 (100 = normal)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
			},
		},
		{Name: "help", Description: "How to use the radio"},
	}

	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			slog.Error("failed to create application command", "guildID", guildID, "command", c.Name, "err", err)
			return err
		}
		slog.Debug("registered command", "guildID", guildID, "command", c.Name)
	}

	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionMessageComponent:
		slog.Debug("interaction: component", "guildID", i.GuildID, "userID", userIDOf(i), "customID", i.MessageComponentData().CustomID)
		h.handleComponent(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "radio":
		if len(data.Options) == 0 {
			return
		}
		switch data.Options[0].Name {
		case "status":
			h.cmdStatus(s, i)
		case "dashboard":
			h.cmdDashboard(s, i)
		}
	case "stations":
		h.cmdStations(s, i)
	case "setup":
		h.cmdSetup(s, i)
	case "volume":
		h.cmdVolume(s, i)
	case "help":
		h.cmdHelp(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

// handleComponent routes the station dropdown. Custom ids look like
// radio_select_<category>; the selected value is the station id.
func (h *CommandHandler) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if !strings.HasPrefix(data.CustomID, "radio_select_") || len(data.Values) == 0 {
		return
	}

	stationID, err := strconv.ParseInt(data.Values[0], 10, 64)
	if err != nil {
		h.reply(s, i, "Invalid station selection.", true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	h.deferReply(s, i, true)
	if err := h.ctrl.PlayStation(ctx, i.GuildID, stationID, userIDOf(i)); err != nil {
		h.editReply(s, i, playErrorMessage(err))
		return
	}

	st, _ := h.repo.GetStation(ctx, stationID)
	name := "the station"
	if st != nil {
		name = "**" + st.Name + "**"
	}
	h.editReply(s, i, fmt.Sprintf("📻 Now playing %s", name))
}

func (h *CommandHandler) cmdStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	status := h.ctrl.GetStatus(i.GuildID)
	if !status.HasSession {
		h.reply(s, i, "The radio is not set up in this server yet. Run `/setup` first.", true)
		return
	}
	embed := ui.StatusEmbed(status.Station, status.IsPlaying, status.Volume, status.Listeners, status.QualityKbps, processMemoryMB())
	h.replyEmbed(s, i, embed, true)
}

func (h *CommandHandler) cmdDashboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h.cfg.DashboardURL == "" {
		h.reply(s, i, "No dashboard is configured for this bot.", true)
		return
	}
	h.reply(s, i, fmt.Sprintf("🖥️ Dashboard: %s", h.cfg.DashboardURL), true)
}

func (h *CommandHandler) cmdStations(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stations, err := h.repo.GetAllStations(ctx)
	if err != nil {
		slog.Error("list stations", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "Could not load the station list.", true)
		return
	}
	h.replyEmbed(s, i, ui.StationListEmbed(stations), true)
}

func (h *CommandHandler) cmdSetup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	h.deferReply(s, i, true)
	sess, err := h.ctrl.Setup(ctx, i.GuildID)
	if err != nil {
		slog.Error("setup failed", "guildID", i.GuildID, "err", err)
		h.editReply(s, i, "Setup failed: "+err.Error())
		return
	}

	if err := h.SetupRadioInterface(s, sess.ControlChannelID()); err != nil {
		slog.Warn("could not build station dropdowns", "guildID", i.GuildID, "err", err)
	}

	h.editReply(s, i,
		"✅ Radio is ready!\n"+
			"1. Join the **"+voiceChannelName+"** voice channel\n"+
			"2. Pick a station from the dropdown in **#"+controlChannelName+"**")
}

func (h *CommandHandler) cmdVolume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return
	}
	level := int(data.Options[0].IntValue())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.ctrl.SetVolume(ctx, i.GuildID, level, userIDOf(i)); err != nil {
		h.reply(s, i, playErrorMessage(err), true)
		return
	}
	h.reply(s, i, fmt.Sprintf("🔊 Volume set to %d%%", clampVolume(level)), true)
}

func (h *CommandHandler) cmdHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.reply(s, i,
		"**How to use the radio**\n"+
			"1. Run `/setup` (creates **"+voiceChannelName+"** and **#"+controlChannelName+"**)\n"+
			"2. Join the voice channel\n"+
			"3. Pick a station from the dropdown in the control channel\n\n"+
			"`/radio status` shows what is playing, `/volume` adjusts loudness, `/stations` lists everything.",
		true)
}

// SetupRadioInterface rebuilds the station dropdowns in the control channel.
// Stations are grouped by genre category, at most one menu per category and
// five menus per message.
func (h *CommandHandler) SetupRadioInterface(s *discordgo.Session, channelID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stations, err := h.repo.GetAllStations(ctx)
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}

	h.clearOwnMessages(s, channelID)

	var rows []discordgo.MessageComponent
	for _, cat := range stationCategories(stations) {
		menu := discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    "radio_select_" + cat.slug,
			Placeholder: fmt.Sprintf("%s %s (%d stations)", cat.emoji, cat.name, len(cat.stations)),
		}
		for _, st := range cat.stations {
			menu.Options = append(menu.Options, discordgo.SelectMenuOption{
				Label:       st.Name,
				Value:       strconv.FormatInt(st.ID, 10),
				Description: truncate(st.Genre+" · "+st.Quality, 100),
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}})
	}

	// Discord allows five component rows per message.
	for start := 0; start < len(rows); start += 5 {
		end := start + 5
		if end > len(rows) {
			end = len(rows)
		}
		content := ""
		if start == 0 {
			content = "🎶 **Radio Control** 🎶\nPick a category and station:"
		}
		if _, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content:    content,
			Components: rows[start:end],
		}); err != nil {
			return fmt.Errorf("send station menus: %w", err)
		}
	}

	slog.Info("radio interface built", "channelID", channelID, "stations", len(stations), "menus", len(rows))
	return nil
}

// clearOwnMessages removes the bot's previous interface messages so the
// control channel holds exactly one set of dropdowns.
func (h *CommandHandler) clearOwnMessages(s *discordgo.Session, channelID string) {
	if s.State.User == nil {
		return
	}
	msgs, err := s.ChannelMessages(channelID, 50, "", "", "")
	if err != nil {
		return
	}
	for _, m := range msgs {
		if m.Author != nil && m.Author.ID == s.State.User.ID && len(m.Components) > 0 {
			_ = s.ChannelMessageDelete(channelID, m.ID)
		}
	}
}

type stationCategory struct {
	name     string
	slug     string
	emoji    string
	stations []repository.Station
}

// stationCategories buckets stations by genre keywords, capping each menu at
// Discord's 25-option limit.
func stationCategories(stations []repository.Station) []stationCategory {
	cats := []stationCategory{
		{name: "Pop & Hits", slug: "pop_hits", emoji: "🎤"},
		{name: "Rock & Metal", slug: "rock_metal", emoji: "🎸"},
		{name: "Electronic & House", slug: "electronic_house", emoji: "🎧"},
		{name: "Chill & Lofi", slug: "chill_lofi", emoji: "🌙"},
		{name: "Jazz & Classic", slug: "jazz_classic", emoji: "🎷"},
		{name: "World & More", slug: "world_more", emoji: "🌍"},
	}

	for _, st := range stations {
		if !st.IsActive {
			continue
		}
		idx := len(cats) - 1
		g := strings.ToLower(st.Genre)
		switch {
		case strings.Contains(g, "pop") || strings.Contains(g, "hits") || strings.Contains(g, "top"):
			idx = 0
		case strings.Contains(g, "rock") || strings.Contains(g, "metal"):
			idx = 1
		case strings.Contains(g, "electro") || strings.Contains(g, "house") || strings.Contains(g, "dance") || strings.Contains(g, "edm"):
			idx = 2
		case strings.Contains(g, "chill") || strings.Contains(g, "lofi") || strings.Contains(g, "lo-fi") || strings.Contains(g, "ambient"):
			idx = 3
		case strings.Contains(g, "jazz") || strings.Contains(g, "classic"):
			idx = 4
		}
		if len(cats[idx].stations) < 25 {
			cats[idx].stations = append(cats[idx].stations, st)
		}
	}

	out := cats[:0]
	for _, c := range cats {
		if len(c.stations) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func playErrorMessage(err error) string {
	var denied *radio.DeniedError
	switch {
	case errors.As(err, &denied):
		return denied.Reason
	case errors.Is(err, radio.ErrStationNotFound):
		return "That station does not exist anymore. Try `/stations`."
	case errors.Is(err, radio.ErrConnectionNotReady):
		return "The voice connection is not ready yet. Please try again in a moment."
	case errors.Is(err, radio.ErrSessionNotFound):
		return "The radio is not set up in this server yet. Run `/setup` first."
	default:
		return "Something went wrong: " + err.Error()
	}
}

// truncate shortens s to max runes, never splitting a multi-byte character.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-1]) + "…"
}

func clampVolume(v int) int {
	if v < radio.MinVolume {
		return radio.MinVolume
	}
	if v > radio.MaxVolume {
		return radio.MaxVolume
	}
	return v
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) replyEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: flags,
		},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

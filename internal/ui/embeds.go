package ui

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/valkyrion/radiobot/internal/repository"
)

const (
	colorPlaying = 0x5865F2
	colorIdle    = 0x992222
	colorStatus  = 0x006400
)

func NowPlayingEmbed(st *repository.Station, listeners int) *discordgo.MessageEmbed {
	if st == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "No station selected",
			Color:       colorIdle,
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎵 Now Playing",
		Description: fmt.Sprintf("**%s**", st.Name),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎼 Genre", Value: orDash(st.Genre), Inline: true},
			{Name: "📡 Quality", Value: orDash(st.Quality), Inline: true},
			{Name: "👥 Listeners", Value: fmt.Sprint(listeners), Inline: true},
		},
	}
	if st.Artwork != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: st.Artwork}
	}
	return embed
}

// StatusEmbed summarizes one guild's radio session for /radio status.
func StatusEmbed(station *repository.Station, isPlaying bool, volume, listeners, qualityKbps int, memoryMB uint64) *discordgo.MessageEmbed {
	state := "⏹️ Stopped"
	stationName := "-"
	if isPlaying && station != nil {
		state = "▶️ Playing"
		stationName = station.Name
	}

	return &discordgo.MessageEmbed{
		Title: "📻 Radio Status",
		Color: colorStatus,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "State", Value: state, Inline: true},
			{Name: "Station", Value: stationName, Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d%%", volume), Inline: true},
			{Name: "Listeners", Value: fmt.Sprint(listeners), Inline: true},
			{Name: "Stream quality", Value: fmt.Sprintf("%d kbps", qualityKbps), Inline: true},
			{Name: "Memory", Value: fmt.Sprintf("%d MB", memoryMB), Inline: true},
		},
	}
}

// StationListEmbed renders the station catalog for /stations.
func StationListEmbed(stations []repository.Station) *discordgo.MessageEmbed {
	desc := ""
	for _, st := range stations {
		if !st.IsActive {
			continue
		}
		desc += fmt.Sprintf("**%s** — %s (%s)\n", st.Name, orDash(st.Genre), orDash(st.Quality))
	}
	if desc == "" {
		desc = "No stations available"
	}
	return &discordgo.MessageEmbed{
		Title:       "📻 Available Stations",
		Description: desc,
		Color:       colorStatus,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Pick a station from the dropdown in the radio-control channel",
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

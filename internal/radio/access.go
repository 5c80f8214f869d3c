package radio

import "fmt"

// Decision is the result of an access check. Message is user-facing and only
// set when control is denied.
type Decision struct {
	InVoiceChannel   bool
	SameChannelAsBot bool
	Message          string
}

func (d Decision) Allowed() bool {
	return d.InVoiceChannel && d.SameChannelAsBot
}

// AccessGuard gates user-invoked playback control. System-authority paths
// (resume, supervisor) bypass it entirely.
type AccessGuard struct {
	members MemberResolver
}

func NewAccessGuard(members MemberResolver) *AccessGuard {
	return &AccessGuard{members: members}
}

// CanControl reports whether the user may control playback in the guild.
// The user must be in a voice channel, and it must be the bot's channel.
// Anything unresolvable denies access.
func (g *AccessGuard) CanControl(guildID, userID string) Decision {
	if g.members == nil || !g.members.Online() {
		return Decision{Message: "Bot is not connected right now. Please try again in a moment."}
	}

	userCh, ok := g.members.UserVoiceChannel(guildID, userID)
	if !ok || userCh == "" {
		return Decision{Message: "You need to be in a voice channel to control the radio!"}
	}

	botCh, botChName, ok := g.members.BotVoiceChannel(guildID)
	if !ok || botCh == "" {
		return Decision{InVoiceChannel: true, Message: "The radio is not connected to a voice channel yet. Run setup first."}
	}

	if userCh != botCh {
		return Decision{
			InVoiceChannel: true,
			Message:        fmt.Sprintf("You need to be in **%s** to control the radio!", botChName),
		}
	}

	return Decision{InVoiceChannel: true, SameChannelAsBot: true}
}

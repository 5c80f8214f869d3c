package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessDeniedWhenGatewayOffline(t *testing.T) {
	members := newFakeMembers()
	members.online = false
	guard := NewAccessGuard(members)

	d := guard.CanControl("g1", "u1")

	assert.False(t, d.Allowed())
	assert.NotEmpty(t, d.Message)
}

func TestAccessDeniedWhenUserNotInVoice(t *testing.T) {
	members := newFakeMembers()
	members.botVoice = "ch-radio"
	guard := NewAccessGuard(members)

	d := guard.CanControl("g1", "u1")

	assert.False(t, d.Allowed())
	assert.False(t, d.InVoiceChannel)
	assert.Contains(t, d.Message, "voice channel")
}

func TestAccessDeniedWhenInDifferentChannel(t *testing.T) {
	members := newFakeMembers()
	members.botVoice = "ch-radio"
	members.botName = "Radio Hub"
	members.userVoice["u1"] = "ch-other"
	guard := NewAccessGuard(members)

	d := guard.CanControl("g1", "u1")

	assert.False(t, d.Allowed())
	assert.True(t, d.InVoiceChannel)
	assert.False(t, d.SameChannelAsBot)
	assert.Contains(t, d.Message, "Radio Hub")
}

func TestAccessDeniedWhenBotNotConnected(t *testing.T) {
	members := newFakeMembers()
	members.userVoice["u1"] = "ch-somewhere"
	guard := NewAccessGuard(members)

	d := guard.CanControl("g1", "u1")

	assert.False(t, d.Allowed())
	assert.NotEmpty(t, d.Message)
}

func TestAccessAllowedInSameChannel(t *testing.T) {
	members := newFakeMembers()
	members.botVoice = "ch-radio"
	members.userVoice["u1"] = "ch-radio"
	guard := NewAccessGuard(members)

	d := guard.CanControl("g1", "u1")

	assert.True(t, d.Allowed())
	assert.Empty(t, d.Message)
}

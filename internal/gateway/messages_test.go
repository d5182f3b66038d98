package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelKey_TableAndChatIncludeScopeID(t *testing.T) {
	assert.Equal(t, "table:t1", ChannelKey(ChannelTable, "t1"))
	assert.Equal(t, "chat:t1", ChannelKey(ChannelChat, "t1"))
}

func TestChannelKey_LobbyIgnoresScopeID(t *testing.T) {
	assert.Equal(t, "lobby", ChannelKey(ChannelLobby, "anything"))
	assert.Equal(t, "lobby", ChannelKey(ChannelLobby, ""))
}

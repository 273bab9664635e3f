package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/socket.io/v2/socket"
)

func TestParseGameID(t *testing.T) {
	id, err := ParseGameID([]interface{}{float64(7)})
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	id, err = ParseGameID([]interface{}{"12"})
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	for _, bad := range [][]interface{}{nil, {float64(0)}, {1.5}, {"x"}, {"0"}, {true}} {
		_, err := ParseGameID(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestGameRoom(t *testing.T) {
	assert.Equal(t, socket.Room("game:3:live"), GameRoom(3))
}

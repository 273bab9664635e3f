package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKeys(t *testing.T) {
	assert.Equal(t, "game:7:events", FormatGameEventsKey(7))
	assert.Equal(t, "game:7:live", FormatGameChannel(7))
}

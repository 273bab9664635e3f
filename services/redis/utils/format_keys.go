package utils

/**
 * This file contains utility functions to format the keys for Redis
 * (key, value) pairs. It avoids having to call "fmt.Sprintf(...)"
 * with the same format spec every time, potentially confusing the key format.
 */

import "fmt"

func FormatGameEventsKey(gameID uint) string {
	return fmt.Sprintf("game:%d:events", gameID)
}

func FormatGameChannel(gameID uint) string {
	return fmt.Sprintf("game:%d:live", gameID)
}

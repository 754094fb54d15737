package util

import (
	"strconv"
	"strings"
	"time"
)

// Chat-platform snowflake ids embed a millisecond creation timestamp above
// this epoch (2015-01-01T00:00:00Z), shifted left by 22 bits.
const snowflakeEpochMillis = 1420070400000

// SnowflakeTime decodes the creation time embedded in a snowflake id.
func SnowflakeTime(id uint64) time.Time {
	ms := int64(id>>22) + snowflakeEpochMillis
	return time.UnixMilli(ms)
}

// MessageIDFromURL extracts the message snowflake from a published-message
// URL (the last path segment). Returns 0 if the URL does not end in an id.
func MessageIDFromURL(url string) uint64 {
	url = strings.TrimRight(url, "/")
	idx := strings.LastIndex(url, "/")
	if idx == -1 {
		return 0
	}
	id, err := strconv.ParseUint(url[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// MessageURLTime returns the creation time of the message a published-message
// URL points at, or the zero time if the URL carries no snowflake.
func MessageURLTime(url string) time.Time {
	id := MessageIDFromURL(url)
	if id == 0 {
		return time.Time{}
	}
	return SnowflakeTime(id)
}

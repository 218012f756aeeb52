package timex

import "time"

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// SinceMs returns the milliseconds elapsed since a NowMs stamp.
func SinceMs(stamp int64) int64 { return NowMs() - stamp }

package notification

import (
	"fmt"
	"time"
)

// TimeAgo はcreatedAtからnowまでの経過時間を相対表記に変換する。
// 60秒未満は "Just now"、以降は分・時間・日の単位で切り捨てて表す。
// 時計のずれで経過時間が負になった場合は0秒として扱う。
func TimeAgo(createdAt, now time.Time) string {
	seconds := int64(now.Sub(createdAt) / time.Second)
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

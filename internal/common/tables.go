package common

import "slices"

// Remote table names.
const (
	TableUsers        = "users"
	TableDailyLogs    = "daily_logs"
	TableAppointments = "appointments"
	TableFeedPosts    = "feed_posts"
	TableFeedLikes    = "feed_likes"
	TableFeedComments = "feed_comments"
)

// DailyLogConflictKey is the natural key of a daily counter row.
const DailyLogConflictKey = "user_id,date,category"

// Tables lists every table the dashboard mirrors.
var Tables = []string{
	TableUsers,
	TableDailyLogs,
	TableAppointments,
	TableFeedPosts,
	TableFeedLikes,
	TableFeedComments,
}

func IsKnownTable(table string) bool {
	return slices.Contains(Tables, table)
}

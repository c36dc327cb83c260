package store

// Canonical keys of the top-level collections.
const (
	KeyUsers          = "users"
	KeyDailyLogs      = "dailyLogs"
	KeyAppointments   = "appointments"
	KeyFeed           = "feed"
	KeyAppSettings    = "appSettings"
	KeyThemeMode      = "themeMode"
	KeyDailySnapshots = "dailySnapshots"
	KeyCurrentUser    = "currentUser"
	KeyRememberUser   = "rememberUser"
)

const (
	chatSessionsPrefix = "chatSessions_"
	chatMessagesPrefix = "chatMessages_"
)

func ChatSessionsKey(userID string) string {
	return chatSessionsPrefix + userID
}

func ChatMessagesKey(userID, sessionID string) string {
	return chatMessagesPrefix + userID + "_" + sessionID
}

// ChatSession is the part of a chatSessions_<userId> entry the store reads.
// The chat client owns the rest of the record.
type ChatSession struct {
	ID string `json:"id"`
}

package core

// Logger is any service that can log messages.
// args may contain errors, maps of extra data and at most one Requester.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Requester identifies the portal user a log entry is about.
type Requester struct {
	UserID string
}

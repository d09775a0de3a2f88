package core

// Logger is any service that can log messages.
// expected args: error, map[string]interface{}, Identity
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the logged in person attached to log entries.
type Identity struct {
	ID   string
	Name string
	Role string
}

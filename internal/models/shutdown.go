package models

// ShutdownConfig describes how to power down the storage host over SSH.
type ShutdownConfig struct {
	Host          string
	Port          int
	Username      string
	PrivateKey    []byte // loaded from KeyPath when empty
	KeyPath       string
	ShutdownDelay int    // minutes
	OS            string // "linux" (default) or "windows"
}

// ShutdownResult holds the result of a remote command.
type ShutdownResult struct {
	CommandRun bool
	Output     string
	Error      error
}

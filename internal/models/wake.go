package models

import "time"

// WakeConfig describes how to wake the storage host that exports the destination.
type WakeConfig struct {
	MACAddress    string
	BroadcastIP   string
	PollURL       string        // polled until the storage host answers
	Timeout       time.Duration // max time to wait for the storage host
	PollInterval  time.Duration
	StabilizeWait time.Duration // wait after the host first responds
}

// WakeResult holds the result of a Wake-on-LAN attempt.
type WakeResult struct {
	PacketSent   bool
	TargetReady  bool
	WaitDuration time.Duration
	Error        error
}

// Package events carries the user-facing events of the backup engine: log lines, schedule
// status changes and notifications.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Observer receives engine events. Implementations must not block for long; they are called
// from the backup cycle and the scheduler.
type Observer interface {
	Log(message string)
	Status(running bool)
	Notify(title, body string)
}

// LogObserver forwards events to a zerolog logger.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates an observer that writes every event to logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "backup").Logger()}
}

// Log implements Observer.
func (o *LogObserver) Log(message string) {
	o.logger.Info().Msg(message)
}

// Status implements Observer.
func (o *LogObserver) Status(running bool) {
	o.logger.Debug().Bool("scheduled", running).Msg("status")
}

// Notify implements Observer.
func (o *LogObserver) Notify(title, body string) {
	o.logger.Warn().Str("title", title).Msg(body)
}

// Fanout delivers every event to each observer in order.
type Fanout []Observer

// Log implements Observer.
func (f Fanout) Log(message string) {
	for _, o := range f {
		o.Log(message)
	}
}

// Status implements Observer.
func (f Fanout) Status(running bool) {
	for _, o := range f {
		o.Status(running)
	}
}

// Notify implements Observer.
func (f Fanout) Notify(title, body string) {
	for _, o := range f {
		o.Notify(title, body)
	}
}

// Notification is a recorded Notify call.
type Notification struct {
	Title string
	Body  string
}

// Recorder keeps every event in memory. It backs the `once` command summary and tests.
type Recorder struct {
	mu            sync.Mutex
	logs          []string
	statuses      []bool
	notifications []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Log implements Observer.
func (r *Recorder) Log(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, message)
}

// Status implements Observer.
func (r *Recorder) Status(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, running)
}

// Notify implements Observer.
func (r *Recorder) Notify(title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, Notification{Title: title, Body: body})
}

// Logs returns a copy of the recorded log lines.
func (r *Recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// Statuses returns a copy of the recorded status values.
func (r *Recorder) Statuses() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.statuses...)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

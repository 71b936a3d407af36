package project

import (
	"log/slog"
)

// StatusSink receives short human-readable status messages, such as the
// rebuild summary shown in a status bar.
type StatusSink interface {
	Post(message string)
}

// FuncSink adapts a function to StatusSink.
type FuncSink func(message string)

// Post calls f.
func (f FuncSink) Post(message string) { f(message) }

// Discard is a StatusSink that drops every message.
var Discard StatusSink = FuncSink(func(string) {})

// ChannelSink delivers messages on a buffered channel. Post never blocks;
// when the buffer is full the message is dropped.
type ChannelSink struct {
	ch chan string
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan string, buffer)}
}

// Post implements StatusSink.
func (s *ChannelSink) Post(message string) {
	select {
	case s.ch <- message:
	default:
	}
}

// Messages returns the receive side.
func (s *ChannelSink) Messages() <-chan string {
	return s.ch
}

// LogSink writes messages to a logger at info level.
type LogSink struct {
	Logger *slog.Logger
}

// Post implements StatusSink.
func (s LogSink) Post(message string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("status", slog.String("message", message))
}

// MultiSink fans a message out to every sink.
type MultiSink []StatusSink

// Post implements StatusSink.
func (m MultiSink) Post(message string) {
	for _, s := range m {
		if s != nil {
			s.Post(message)
		}
	}
}

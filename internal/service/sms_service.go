package service

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSMSSender implements ports.SMSSender by logging the message instead of
// delivering it. Used in development and tests; production wires a real
// provider behind the same interface.
type LogSMSSender struct {
	log zerolog.Logger
}

// NewLogSMSSender creates a log-only SMS sender.
func NewLogSMSSender(log zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{log: log}
}

// Send logs the outbound message.
func (s *LogSMSSender) Send(_ context.Context, phoneNumber string, message string) error {
	s.log.Info().
		Str("phone_number", phoneNumber).
		Str("message", message).
		Msg("sms dispatched (log sender)")
	return nil
}

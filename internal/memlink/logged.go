package memlink

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/varpath/internal/memory"
)

// Logged wraps a link and logs every transfer at debug level and every
// failure at warn level.
type Logged struct {
	link   memory.Link
	logger zerolog.Logger
}

var _ memory.Link = (*Logged)(nil)

// NewLogged decorates link with logger.
func NewLogged(link memory.Link, logger zerolog.Logger) *Logged {
	return &Logged{
		link:   link,
		logger: logger.With().Str("component", "memlink").Logger(),
	}
}

// ReadBytes implements memory.Link.
func (l *Logged) ReadBytes(ctx context.Context, addr uint64, n int) ([]byte, error) {
	start := time.Now()
	data, err := l.link.ReadBytes(ctx, addr, n)
	if err != nil {
		l.logger.Warn().Err(err).Str("address", hexAddr(addr)).Int("length", n).Msg("Read failed")
		return nil, err
	}
	l.logger.Debug().
		Str("address", hexAddr(addr)).
		Int("length", n).
		Dur("elapsed", time.Since(start)).
		Msg("Read")
	return data, nil
}

// WriteBytes implements memory.Link.
func (l *Logged) WriteBytes(ctx context.Context, addr uint64, data []byte) error {
	start := time.Now()
	if err := l.link.WriteBytes(ctx, addr, data); err != nil {
		l.logger.Warn().Err(err).Str("address", hexAddr(addr)).Int("length", len(data)).Msg("Write failed")
		return err
	}
	l.logger.Debug().
		Str("address", hexAddr(addr)).
		Int("length", len(data)).
		Hex("data", data).
		Dur("elapsed", time.Since(start)).
		Msg("Write")
	return nil
}

func hexAddr(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}

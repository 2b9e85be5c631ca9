package logutil

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type (
	key byte
)

var (
	loggerKey = key(1)
)

func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func GetOrDefault(ctx context.Context) zerolog.Logger {
	v := ctx.Value(loggerKey)
	if v == nil {
		return log.Logger
	}
	return v.(zerolog.Logger)
}

// KeyDigest returns a short non-reversible fingerprint of an API key.
// Log lines carry the fingerprint instead of the key itself, so operators
// can correlate requests without credentials ending up in log storage.
func KeyDigest(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(apiKey), 16)
}

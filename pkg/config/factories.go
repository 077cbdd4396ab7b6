package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/webfsd/webfsd/internal/ratelimiter"
)

// CreateLimiter creates a rate limiter from configuration.
//
// The Type field selects the implementation; the matching type-specific map
// is decoded into that implementation's option struct. Type "none" returns
// nil, which disables admission control.
func CreateLimiter(cfg *RateLimitConfig) (ratelimiter.Limiter, error) {
	switch cfg.Type {
	case "sliding_log":
		opts, err := decodeSlidingLogOptions(cfg.SlidingLog)
		if err != nil {
			return nil, err
		}
		return ratelimiter.NewSlidingLog(opts.Limit, opts.Window), nil
	case "token_bucket":
		opts, err := decodeTokenBucketOptions(cfg.TokenBucket)
		if err != nil {
			return nil, err
		}
		return ratelimiter.NewTokenBucket(opts.RequestsPerSecond, opts.Burst), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rate limit type: %q", cfg.Type)
	}
}

// slidingLogOptions holds sliding-log limiter options.
type slidingLogOptions struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

func decodeSlidingLogOptions(options map[string]any) (*slidingLogOptions, error) {
	opts := &slidingLogOptions{}
	if err := decodeOptions(options, opts); err != nil {
		return nil, fmt.Errorf("invalid sliding_log options: %w", err)
	}
	if opts.Limit == 0 {
		opts.Limit = DefaultRateLimit
	}
	if opts.Window == 0 {
		opts.Window = DefaultRateWindow
	}
	return opts, nil
}

// tokenBucketOptions holds token-bucket limiter options.
type tokenBucketOptions struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
	Burst             uint `mapstructure:"burst"`
}

func decodeTokenBucketOptions(options map[string]any) (*tokenBucketOptions, error) {
	opts := &tokenBucketOptions{}
	if err := decodeOptions(options, opts); err != nil {
		return nil, fmt.Errorf("invalid token_bucket options: %w", err)
	}
	if opts.Burst == 0 {
		opts.Burst = opts.RequestsPerSecond
	}
	return opts, nil
}

// decodeOptions decodes a free-form options map into a typed struct,
// accepting duration strings like "1s".
func decodeOptions(options map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

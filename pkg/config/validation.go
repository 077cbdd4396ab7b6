package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom rules
// that cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	switch cfg.RateLimit.Type {
	case "sliding_log":
		opts, err := decodeSlidingLogOptions(cfg.RateLimit.SlidingLog)
		if err != nil {
			return err
		}
		if opts.Limit < 0 {
			return fmt.Errorf("ratelimit.sliding_log.limit: must not be negative")
		}
		if opts.Window < 0 {
			return fmt.Errorf("ratelimit.sliding_log.window: must not be negative")
		}
	case "token_bucket":
		if _, err := decodeTokenBucketOptions(cfg.RateLimit.TokenBucket); err != nil {
			return err
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

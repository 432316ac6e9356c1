package config

// ProcessingConfig configures post-processing of raw-text replies.
// Structured endpoints always see the reply unmodified.
type ProcessingConfig struct {
	// ResponseFormatting configures how responses should be formatted
	ResponseFormatting ResponseFormattingConfig `yaml:"response_formatting"`
}

// ResponseFormattingConfig defines response formatting options.
// The zero value leaves replies untouched.
type ResponseFormattingConfig struct {
	// CleanJSON strips markdown code fences using gollm
	CleanJSON bool `yaml:"clean_json"`

	// TrimWhitespace removes leading and trailing whitespace
	TrimWhitespace bool `yaml:"trim_whitespace"`

	// MaxLength truncates the reply to this many runes; 0 means unlimited
	MaxLength int `yaml:"max_length"`
}

package projection

import "time"

// MetaMode controls how much tool and status activity is projected.
type MetaMode string

const (
	MetaOff     MetaMode = "off"
	MetaMinimal MetaMode = "minimal"
	MetaVerbose MetaMode = "verbose"
)

// DeliveryMode controls when accepted assistant text is drained.
type DeliveryMode string

const (
	DeliveryLive      DeliveryMode = "live"
	DeliveryFinalOnly DeliveryMode = "final_only"
)

// TypingTrigger selects the first unit of work that starts the typing signal.
type TypingTrigger string

const (
	TypingOnAny   TypingTrigger = "any"
	TypingOnText  TypingTrigger = "text"
	TypingOnNever TypingTrigger = "never"
)

// Default configuration values.
const (
	DefaultMaxTurnChars         = 24000
	DefaultMaxToolSummaryChars  = 200
	DefaultMaxStatusChars       = 300
	DefaultMaxMetaEventsPerTurn = 50
	DefaultTypingInterval       = 6 * time.Second
	DefaultTruncationNotice     = "\n\n[output truncated]"
)

// NoMetaEvents is the MaxMetaEventsPerTurn value that suppresses every meta
// event. Zero means unset and takes the default.
const NoMetaEvents = -1

// Config is the immutable per-session projection snapshot. A Turn copies it
// at construction; later changes apply to the next turn only.
type Config struct {
	TagVisibility        map[Category]bool
	MetaMode             MetaMode
	DeliveryMode         DeliveryMode
	TypingTrigger        TypingTrigger
	TruncationNotice     string
	MaxTurnChars         int
	MaxToolSummaryChars  int
	MaxStatusChars       int
	MaxMetaEventsPerTurn int
	TypingInterval       time.Duration
	ShowUsage            bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MetaMode:             MetaMinimal,
		DeliveryMode:         DeliveryLive,
		TypingTrigger:        TypingOnAny,
		TruncationNotice:     DefaultTruncationNotice,
		MaxTurnChars:         DefaultMaxTurnChars,
		MaxToolSummaryChars:  DefaultMaxToolSummaryChars,
		MaxStatusChars:       DefaultMaxStatusChars,
		MaxMetaEventsPerTurn: DefaultMaxMetaEventsPerTurn,
		TypingInterval:       DefaultTypingInterval,
	}
}

// WithDefaults fills unset or invalid fields from DefaultConfig and returns
// a copy that shares nothing with c.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	switch c.MetaMode {
	case MetaOff, MetaMinimal, MetaVerbose:
	default:
		c.MetaMode = d.MetaMode
	}
	switch c.DeliveryMode {
	case DeliveryLive, DeliveryFinalOnly:
	default:
		c.DeliveryMode = d.DeliveryMode
	}
	switch c.TypingTrigger {
	case TypingOnAny, TypingOnText, TypingOnNever:
	default:
		c.TypingTrigger = d.TypingTrigger
	}
	if c.TruncationNotice == "" {
		c.TruncationNotice = d.TruncationNotice
	}
	if c.MaxTurnChars <= 0 {
		c.MaxTurnChars = d.MaxTurnChars
	}
	if c.MaxToolSummaryChars <= 0 {
		c.MaxToolSummaryChars = d.MaxToolSummaryChars
	}
	if c.MaxStatusChars <= 0 {
		c.MaxStatusChars = d.MaxStatusChars
	}
	switch {
	case c.MaxMetaEventsPerTurn == 0:
		c.MaxMetaEventsPerTurn = d.MaxMetaEventsPerTurn
	case c.MaxMetaEventsPerTurn < 0:
		c.MaxMetaEventsPerTurn = NoMetaEvents
	}
	if c.TypingInterval <= 0 {
		c.TypingInterval = d.TypingInterval
	}
	if c.TagVisibility != nil {
		tags := make(map[Category]bool, len(c.TagVisibility))
		for k, v := range c.TagVisibility {
			tags[k] = v
		}
		c.TagVisibility = tags
	}
	return c
}

// visible applies the tag gate: explicit override, else the default table.
func (c *Config) visible(cat Category) bool {
	if v, ok := c.TagVisibility[cat]; ok {
		return v
	}
	return defaultVisible(cat, c.ShowUsage)
}

package projection

// Budget holds one turn's monotonic output counters. Counts are in runes.
type Budget struct {
	maxText    int
	maxMeta    int
	text       int
	meta       int
	noticeSent bool
}

// NewBudget returns an empty budget with the caps from cfg.
func NewBudget(cfg Config) *Budget {
	return &Budget{maxText: cfg.MaxTurnChars, maxMeta: max(cfg.MaxMetaEventsPerTurn, 0)}
}

// TextUsed returns the number of assistant text runes emitted.
func (b *Budget) TextUsed() int { return b.text }

// MetaUsed returns the number of meta events emitted.
func (b *Budget) MetaUsed() int { return b.meta }

// NoticeSent reports whether the truncation notice went out.
func (b *Budget) NoticeSent() bool { return b.noticeSent }

// TextRemaining returns how many more text runes fit.
func (b *Budget) TextRemaining() int {
	if r := b.maxText - b.text; r > 0 {
		return r
	}
	return 0
}

// MetaExhausted reports whether the meta-event cap has been reached.
func (b *Budget) MetaExhausted() bool { return b.meta >= b.maxMeta }

func (b *Budget) addText(n int) {
	if n > 0 {
		b.text += n
	}
}

func (b *Budget) addMeta() { b.meta++ }

func (b *Budget) markNotice() { b.noticeSent = true }

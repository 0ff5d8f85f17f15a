package context

import (
	"strings"

	"github.com/ringo380/agentik/pkg/models"
)

// Config configures the Context Manager's token accounting and compaction
// trigger (§4.G).
type Config struct {
	MaxContextTokens        int
	CompactionThreshold     float64 // in [0,1]
	MinRecentTokens         int
	PreserveRecentMessages  int
	CharsPerToken           float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxContextTokens:       DefaultContextWindow,
		CompactionThreshold:    0.75,
		MinRecentTokens:        2000,
		PreserveRecentMessages: 5,
		CharsPerToken:          1 / TokensPerChar, // ~4 chars/token
	}
}

func (c Config) sanitized() Config {
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = DefaultContextWindow
	}
	if c.CompactionThreshold <= 0 || c.CompactionThreshold > 1 {
		c.CompactionThreshold = 0.75
	}
	if c.MinRecentTokens < 0 {
		c.MinRecentTokens = 0
	}
	if c.PreserveRecentMessages < 0 {
		c.PreserveRecentMessages = 0
	}
	if c.CharsPerToken <= 0 {
		c.CharsPerToken = 4
	}
	return c
}

// CompactionTrigger returns floor(max_context_tokens * compaction_threshold).
func (c Config) CompactionTrigger() int {
	c = c.sanitized()
	return int(float64(c.MaxContextTokens) * c.CompactionThreshold)
}

// Manager implements §4.G: token accounting, usage statistics, and
// compaction-boundary selection.
type Manager struct {
	cfg Config
}

// NewManager constructs a Manager with the given config.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg.sanitized()}
}

// ContextUsage is the result of CalculateUsage.
type ContextUsage struct {
	SummaryTokens    int
	MessageTokens    int
	TotalTokens      int
	NeedsCompaction  bool
	CompactionTrigger int
}

// CountMessageTokens returns m.TokenCount if present; otherwise
// ceil(len(text)/chars_per_token).
func (mgr *Manager) CountMessageTokens(m models.Message) int {
	if m.TokenCount != nil {
		return *m.TokenCount
	}
	return ceilDiv(len([]rune(m.Text())), mgr.cfg.CharsPerToken)
}

// CountSummaryTokens counts chars across summary text + decisions + file
// path strings, divided by chars_per_token.
func (mgr *Manager) CountSummaryTokens(s *models.CompactedSummary) int {
	if s == nil {
		return 0
	}
	chars := len([]rune(s.Text))
	for _, d := range s.KeyDecisions {
		chars += len([]rune(d))
	}
	for _, f := range s.ModifiedFiles {
		chars += len([]rune(f))
	}
	return ceilDiv(chars, mgr.cfg.CharsPerToken)
}

func ceilDiv(chars int, charsPerToken float64) int {
	if chars == 0 {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	tokens := int((float64(chars) + charsPerToken - 1) / charsPerToken)
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// CalculateUsage implements: summary_tokens + sum(tokens(messages[compact_boundary..])).
func (mgr *Manager) CalculateUsage(session *models.Session) ContextUsage {
	summaryTokens := mgr.CountSummaryTokens(session.Summary)

	boundary := session.CompactBoundary
	if boundary < 0 {
		boundary = 0
	}
	if boundary > len(session.Messages) {
		boundary = len(session.Messages)
	}

	msgTokens := 0
	for _, m := range session.Messages[boundary:] {
		msgTokens += mgr.CountMessageTokens(m)
	}

	total := summaryTokens + msgTokens
	trigger := mgr.cfg.CompactionTrigger()
	return ContextUsage{
		SummaryTokens:     summaryTokens,
		MessageTokens:     msgTokens,
		TotalTokens:       total,
		NeedsCompaction:   total > trigger,
		CompactionTrigger: trigger,
	}
}

// PreparedContext is the system prompt and message slice ready to send to
// a provider.
type PreparedContext struct {
	System   string
	Messages []models.Message
}

// PrepareContext implements: system text is base_system joined
// (double-newline) with a formatted summary if present; messages are
// messages[compact_boundary..].
func (mgr *Manager) PrepareContext(session *models.Session, baseSystem string) PreparedContext {
	boundary := session.CompactBoundary
	if boundary < 0 {
		boundary = 0
	}
	if boundary > len(session.Messages) {
		boundary = len(session.Messages)
	}

	system := baseSystem
	if session.Summary != nil {
		formatted := FormatSummary(session.Summary)
		if system == "" {
			system = formatted
		} else {
			system = system + "\n\n" + formatted
		}
	}

	return PreparedContext{
		System:   system,
		Messages: session.Messages[boundary:],
	}
}

// FormatSummary renders a CompactedSummary as injected system text: a
// heading, the summary text, and optional "Key Decisions Made"/"Files
// Modified" bulleted lists.
func FormatSummary(s *models.CompactedSummary) string {
	var b strings.Builder
	b.WriteString("## Previous Conversation Summary\n\n")
	b.WriteString(s.Text)

	if len(s.KeyDecisions) > 0 {
		b.WriteString("\n\n## Key Decisions Made\n")
		for _, d := range s.KeyDecisions {
			b.WriteString("- ")
			b.WriteString(d)
			b.WriteString("\n")
		}
	}

	if len(s.ModifiedFiles) > 0 {
		b.WriteString("\n## Files Modified\n")
		for _, f := range s.ModifiedFiles {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// CompactionBoundary is the result of FindCompactionBoundary.
type CompactionBoundary struct {
	Index             int
	MessagesToCompact int
	TokensToCompact   int
	PreservedCount    int
	PreservedTokens   int
}

// FindCompactionBoundary walks messages from newest to oldest, accumulating
// preserved tokens; stops at the first position where both
// preserved_count >= preserve_recent_messages and preserved_tokens >=
// min_recent_tokens. The returned index is the max of that position and the
// existing compact_boundary (monotone non-decreasing, §8 property 6).
func (mgr *Manager) FindCompactionBoundary(session *models.Session) CompactionBoundary {
	n := len(session.Messages)
	existing := session.CompactBoundary
	if existing < 0 {
		existing = 0
	}
	if existing > n {
		existing = n
	}

	if n-existing <= mgr.cfg.PreserveRecentMessages {
		return CompactionBoundary{Index: existing, PreservedCount: n - existing}
	}

	preservedCount := 0
	preservedTokens := 0
	idx := n
	for i := n - 1; i >= existing; i-- {
		tok := mgr.CountMessageTokens(session.Messages[i])
		preservedCount++
		preservedTokens += tok
		idx = i
		if preservedCount >= mgr.cfg.PreserveRecentMessages && preservedTokens >= mgr.cfg.MinRecentTokens {
			break
		}
	}

	if idx < existing {
		idx = existing
	}

	tokensToCompact := 0
	for _, m := range session.Messages[existing:idx] {
		tokensToCompact += mgr.CountMessageTokens(m)
	}

	return CompactionBoundary{
		Index:             idx,
		MessagesToCompact: idx - existing,
		TokensToCompact:   tokensToCompact,
		PreservedCount:    preservedCount,
		PreservedTokens:   preservedTokens,
	}
}

// AdditionEstimate is the result of EstimateAddition.
type AdditionEstimate struct {
	CurrentTokens       int
	ProjectedTokens      int
	WouldTripTrigger    bool
	WouldExceedHardLimit bool
}

// EstimateAddition projects current + new tokens and whether the addition
// would trip the compaction trigger or the hard limit.
func (mgr *Manager) EstimateAddition(session *models.Session, text string) AdditionEstimate {
	usage := mgr.CalculateUsage(session)
	addedTokens := ceilDiv(len([]rune(text)), mgr.cfg.CharsPerToken)
	projected := usage.TotalTokens + addedTokens
	return AdditionEstimate{
		CurrentTokens:        usage.TotalTokens,
		ProjectedTokens:      projected,
		WouldTripTrigger:     projected > mgr.cfg.CompactionTrigger(),
		WouldExceedHardLimit: projected > mgr.cfg.MaxContextTokens,
	}
}

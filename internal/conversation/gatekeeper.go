package conversation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the conversation activation state.
type State string

const (
	// StateIdle means no conversation: only wake-word detection, no dispatch.
	StateIdle State = "idle"
	// StateActivated means a wake word was just accepted.
	StateActivated State = "activated"
	// StateListening means user speech is being recorded.
	StateListening State = "listening"
	// StateProcessing means a downstream action is thinking.
	StateProcessing State = "processing"
	// StateResponding means a response is playing or typing.
	StateResponding State = "responding"
	// StateInConversation means follow-ups are allowed without a wake word.
	StateInConversation State = "in_conversation"
)

// Config contains gatekeeper timeout policy.
type Config struct {
	WakeWordTimeout         time.Duration // Activated with no speech before returning to idle
	ConversationTimeout     time.Duration // inactivity while in conversation
	MaxConversationDuration time.Duration // hard cap regardless of activity
}

// Stats is a snapshot of gatekeeper counters for monitoring.
type Stats struct {
	State              State         `json:"state"`
	ConversationID     string        `json:"conversation_id,omitempty"`
	WakeWords          uint64        `json:"wake_words"`
	Conversations      uint64        `json:"conversations"`
	RejectedUtterances uint64        `json:"rejected_utterances"`
	InConversation     bool          `json:"in_conversation"`
	Duration           time.Duration `json:"conversation_duration"`
}

// Gatekeeper decides whether recognized text may be acted on, independent of
// transcription correctness. The core guarantee: nothing is ever dispatched
// unless a wake word has been observed at least once for the current
// conversation. Timeouts are evaluated on every query rather than on a timer
// goroutine, so there is no race between expiry and the answer.
type Gatekeeper struct {
	config Config
	logger *slog.Logger

	state             State
	conversationID    string
	lastWakeWord      time.Time
	lastActivity      time.Time
	conversationStart time.Time

	// Statistics
	wakeWords          uint64
	conversations      uint64
	rejectedUtterances uint64

	// now is replaceable in tests.
	now func() time.Time

	mu sync.Mutex
}

// NewGatekeeper creates a gatekeeper in the idle state.
func NewGatekeeper(config Config, logger *slog.Logger) *Gatekeeper {
	if config.WakeWordTimeout <= 0 {
		config.WakeWordTimeout = 10 * time.Second
	}

	if config.ConversationTimeout <= 0 {
		config.ConversationTimeout = 15 * time.Second
	}

	if config.MaxConversationDuration <= 0 {
		config.MaxConversationDuration = 5 * time.Minute
	}

	return &Gatekeeper{
		config: config,
		logger: logger,
		state:  StateIdle,
		now:    time.Now,
	}
}

// OnWakeWordDetected records a wake word. From idle it opens a new
// conversation; during a response it is an interruption; in conversation it
// resets the inactivity timeout.
func (g *Gatekeeper) OnWakeWordDetected() {
	g.mu.Lock()
	defer g.mu.Unlock()

	currentTime := g.now()

	g.wakeWords++
	g.lastWakeWord = currentTime
	g.lastActivity = currentTime

	switch g.state {
	case StateIdle:
		g.state = StateActivated
		g.conversationStart = currentTime
		g.conversationID = uuid.NewString()
		g.conversations++

		g.logger.Info("Wake word detected - conversation activated",
			slog.String("conversation_id", g.conversationID),
			slog.Uint64("conversation_number", g.conversations),
		)

	case StateInConversation:
		// Wake word inside a conversation only resets the timeout.
		g.state = StateActivated
		g.logger.Debug("Wake word during conversation - timeout reset",
			slog.String("conversation_id", g.conversationID),
		)

	case StateResponding:
		// User interrupting the response.
		g.state = StateActivated
		g.logger.Info("Wake word during response - interruption",
			slog.String("conversation_id", g.conversationID),
		)

	default:
		g.state = StateActivated
	}
}

// ShouldTranscribe reports whether recognized text should be acted on right
// now, with a reason string for logging. Timeout policy is applied first, so
// an expired conversation answers as idle.
func (g *Gatekeeper) ShouldTranscribe() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkTimeoutsLocked(g.now())

	switch g.state {
	case StateIdle:
		g.rejectedUtterances++
		return false, "idle_no_wake_word"
	case StateActivated:
		return true, "activated"
	case StateListening:
		return true, "listening"
	case StateInConversation:
		return true, "in_conversation"
	case StateProcessing:
		return false, "busy_processing"
	case StateResponding:
		return false, "busy_responding"
	}

	return false, "unknown_state"
}

// StartListening transitions Activated to Listening.
func (g *Gatekeeper) StartListening() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateActivated {
		g.state = StateListening
		g.lastActivity = g.now()
		g.logger.Debug("State: listening")
	}
}

// StartProcessing transitions Listening or Activated to Processing.
func (g *Gatekeeper) StartProcessing() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateListening || g.state == StateActivated {
		g.state = StateProcessing
		g.lastActivity = g.now()
		g.logger.Debug("State: processing")
	}
}

// StartResponding transitions Processing to Responding.
func (g *Gatekeeper) StartResponding() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateProcessing {
		g.state = StateResponding
		g.lastActivity = g.now()
		g.logger.Debug("State: responding")
	}
}

// FinishResponse transitions Responding to InConversation, where follow-ups
// are allowed without a wake word.
func (g *Gatekeeper) FinishResponse() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateResponding {
		g.state = StateInConversation
		g.lastActivity = g.now()
		g.logger.Debug("State: in_conversation")
	}
}

// EndConversation returns to idle and clears conversation timestamps.
// Idempotent: calling it while idle is a no-op.
func (g *Gatekeeper) EndConversation(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endConversationLocked(reason)
}

func (g *Gatekeeper) endConversationLocked(reason string) {
	if g.state == StateIdle {
		return
	}

	duration := time.Duration(0)
	if !g.conversationStart.IsZero() {
		duration = g.now().Sub(g.conversationStart)
	}

	g.logger.Info("Ending conversation",
		slog.String("conversation_id", g.conversationID),
		slog.String("reason", reason),
		slog.Duration("duration", duration),
	)

	g.state = StateIdle
	g.conversationID = ""
	g.lastActivity = time.Time{}
	g.conversationStart = time.Time{}
}

// checkTimeoutsLocked applies the three timeout rules, all funneled through
// the same end-conversation path.
func (g *Gatekeeper) checkTimeoutsLocked(currentTime time.Time) {
	if g.state == StateIdle {
		return
	}

	// Hard cap on total conversation duration.
	if !g.conversationStart.IsZero() &&
		currentTime.Sub(g.conversationStart) > g.config.MaxConversationDuration {
		g.logger.Warn("Max conversation duration reached",
			slog.Duration("duration", currentTime.Sub(g.conversationStart)),
		)
		g.endConversationLocked("max_duration")
		return
	}

	// Inactivity while in conversation.
	if g.state == StateInConversation &&
		currentTime.Sub(g.lastActivity) > g.config.ConversationTimeout {
		g.endConversationLocked("inactivity_timeout")
		return
	}

	// Wake word heard but the user never spoke.
	if g.state == StateActivated &&
		currentTime.Sub(g.lastWakeWord) > g.config.WakeWordTimeout {
		g.endConversationLocked("wake_word_timeout")
		return
	}
}

// CurrentState returns the current state after applying timeout policy.
func (g *Gatekeeper) CurrentState() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.checkTimeoutsLocked(g.now())
	return g.state
}

// InConversation reports whether a conversation is active.
func (g *Gatekeeper) InConversation() bool {
	return g.CurrentState() != StateIdle
}

// Reset forces the gatekeeper back to idle.
func (g *Gatekeeper) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = StateIdle
	g.conversationID = ""
	g.lastWakeWord = time.Time{}
	g.lastActivity = time.Time{}
	g.conversationStart = time.Time{}

	g.logger.Info("Gatekeeper reset to idle")
}

// GetStats returns a snapshot of gatekeeper counters.
func (g *Gatekeeper) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	duration := time.Duration(0)
	if !g.conversationStart.IsZero() {
		duration = g.now().Sub(g.conversationStart)
	}

	return Stats{
		State:              g.state,
		ConversationID:     g.conversationID,
		WakeWords:          g.wakeWords,
		Conversations:      g.conversations,
		RejectedUtterances: g.rejectedUtterances,
		InConversation:     g.state != StateIdle,
		Duration:           duration,
	}
}

package pipeline

import (
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	pipelineerr "github.com/corvidlabs/wakewing/internal/errors"
)

// MatchStage is one link of a rule's chain: the model it watches, the
// activation threshold that counts as a match, and the timeout after which
// an armed (non-first) stage reverts to idle.
type MatchStage struct {
	Model     string
	Threshold float32
	Timeout   time.Duration
}

// MatchRule is a named chain of stages plus the action string to dispatch
// when the whole chain completes.
type MatchRule struct {
	Name   string
	Chain  []MatchStage
	Action string
}

// matchState is the per-rule state machine: either idle (stageIdx < 0) or
// armed on a stage index with the moment it was armed.
type matchState struct {
	stageIdx  int
	startedAt time.Time
}

func idleState() matchState { return matchState{stageIdx: -1} }

// Exiter abstracts the process-exit action so tests can observe dispatch
// without actually terminating the test binary. The exec action is not
// abstracted: it always spawns the subprocess via os/exec.
type Exiter func(code int)

// Matcher evaluates every installed rule against each ActivationSet it is
// given. Unlike the channel-connected stages upstream, Matcher is a plain
// value type driven synchronously by the orchestrator's poll loop, not its
// own goroutine — there is nothing to buffer or back-pressure once an
// ActivationSet has already been computed.
type Matcher struct {
	rules  map[string]*ruleEntry
	exit   Exiter
	onFire func(ruleName string)
	log    *slog.Logger
}

type ruleEntry struct {
	rule  MatchRule
	state matchState
}

func NewMatcher(rules []MatchRule, log *slog.Logger) *Matcher {
	m := &Matcher{
		rules: make(map[string]*ruleEntry, len(rules)),
		exit:  os.Exit,
		log:   log.With("stage", "matcher"),
	}
	for _, r := range rules {
		m.rules[r.Name] = &ruleEntry{rule: r, state: idleState()}
	}
	return m
}

// OnFire registers a callback invoked with a rule's name every time its
// action dispatches, so callers can track fire counts (metrics, tests)
// without the matcher itself knowing what a caller does with that event.
func (m *Matcher) OnFire(fn func(ruleName string)) {
	m.onFire = fn
}

// Evaluate runs every rule against activations at the given instant,
// dispatching any action whose chain completes on this tick.
func (m *Matcher) Evaluate(now time.Time, activations map[string]float32) {
	for name, entry := range m.rules {
		m.evalRule(now, name, entry, activations)
	}
}

type stageOutcome int

const (
	outcomeNoop stageOutcome = iota
	outcomeMatched
	outcomeTimeout
)

func evalStage(now time.Time, stage MatchStage, armed bool, startedAt time.Time, activations map[string]float32) stageOutcome {
	if activations[stage.Model] >= stage.Threshold {
		return outcomeMatched
	}
	if armed && now.Sub(startedAt) > stage.Timeout {
		return outcomeTimeout
	}
	return outcomeNoop
}

func (m *Matcher) evalRule(now time.Time, name string, entry *ruleEntry, activations map[string]float32) {
	rule := entry.rule
	st := entry.state

	if st.stageIdx < 0 {
		outcome := evalStage(now, rule.Chain[0], false, time.Time{}, activations)
		if outcome == outcomeMatched {
			if len(rule.Chain) == 1 {
				m.fire(name, rule.Action)
				entry.state = idleState()
			} else {
				entry.state = matchState{stageIdx: 1, startedAt: now}
			}
		}
		return
	}

	stage := rule.Chain[st.stageIdx]
	switch evalStage(now, stage, true, st.startedAt, activations) {
	case outcomeMatched:
		if st.stageIdx == len(rule.Chain)-1 {
			m.fire(name, rule.Action)
			entry.state = idleState()
		} else {
			entry.state = matchState{stageIdx: st.stageIdx + 1, startedAt: now}
		}
	case outcomeTimeout:
		entry.state = idleState()
	case outcomeNoop:
		// unchanged
	}
}

func (m *Matcher) fire(ruleName, action string) {
	m.log.Info("match rule fired", "rule", ruleName, "action", action)
	if m.onFire != nil {
		m.onFire(ruleName)
	}

	prefix, rest, hasPrefix := strings.Cut(action, ":")
	switch {
	case hasPrefix && prefix == "exit":
		code, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			code = 0
		}
		m.exit(code)

	case hasPrefix && prefix == "exec":
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			m.log.Warn("exec action with no path", "rule", ruleName)
			return
		}
		path := fields[0]
		if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") {
			path = "./" + path
		}
		cmd := exec.Command(path, fields[1:]...)
		cmd.Env = os.Environ()
		if err := cmd.Start(); err != nil {
			m.log.Error("exec action failed to start", "error",
				pipelineerr.New(err).Component("pipeline.matcher").Category(pipelineerr.CategoryAction).
					Context("rule", ruleName).Context("path", path).Build())
			return
		}
		go func() { _ = cmd.Wait() }()

	default:
		m.log.Warn("unrecognized action, ignoring", "rule", ruleName, "action", action)
	}
}

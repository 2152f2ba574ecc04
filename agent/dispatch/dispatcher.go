// Package dispatch routes each request to one of the four strategies.
// Selection is a priority chain: an explicit agent always wins, then
// keyword rules for clearly-typed requests, then one model
// classification call, then the conversational default.
package dispatch

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// Handlers is the closed strategy table. Every field is required, so
// adding a strategy is a compile-time change here and in AgentType.
type Handlers struct {
	KnowledgeBase contractx.Handler
	WebSearch     contractx.Handler
	Research      contractx.Handler
	Chat          contractx.Handler
}

func (h Handlers) validate() error {
	for _, entry := range []struct {
		name    string
		handler contractx.Handler
	}{
		{"knowledge base", h.KnowledgeBase},
		{"web search", h.WebSearch},
		{"research", h.Research},
		{"chat", h.Chat},
	} {
		if entry.handler == nil {
			return fmt.Errorf("%w: %s handler is required", contractx.ErrValidation, entry.name)
		}
	}
	return nil
}

func (h Handlers) forAgent(agent contractx.AgentType) contractx.Handler {
	switch agent {
	case contractx.AgentKnowledgeBase:
		return h.KnowledgeBase
	case contractx.AgentWebSearch:
		return h.WebSearch
	case contractx.AgentResearch:
		return h.Research
	default:
		return h.Chat
	}
}

// labelPattern matches the classifier's "<CATEGORY>: explanation" reply
// anywhere in the response text.
var labelPattern = regexp.MustCompile(`(KNOWLEDGE_BASE|WEB_SEARCH|RESEARCH|CHAT)\s*:?\s*(.*)`)

var labelToAgent = map[string]contractx.AgentType{
	"KNOWLEDGE_BASE": contractx.AgentKnowledgeBase,
	"WEB_SEARCH":     contractx.AgentWebSearch,
	"RESEARCH":       contractx.AgentResearch,
	"CHAT":           contractx.AgentChat,
}

type Dispatcher struct {
	handlers         Handlers
	synth            contractx.Synthesizer
	classifierPrompt string
	rules            []rule
}

func New(handlers Handlers, synth contractx.Synthesizer, classifierPrompt string) (*Dispatcher, error) {
	if err := handlers.validate(); err != nil {
		return nil, err
	}
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	return &Dispatcher{
		handlers:         handlers,
		synth:            synth,
		classifierPrompt: classifierPrompt,
		rules:            defaultRules(),
	}, nil
}

// Dispatch selects a strategy and runs its handler. Handler errors
// propagate unmodified; classification failures never do, the request
// falls through to Chat instead.
func (d *Dispatcher) Dispatch(ctx context.Context, req contractx.Request) (contractx.DispatchDecision, string, error) {
	if strings.TrimSpace(req.RequesterID) == "" {
		return contractx.DispatchDecision{}, "", fmt.Errorf("%w: requester id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(req.Text) == "" {
		return contractx.DispatchDecision{}, "", fmt.Errorf("%w: request text is empty", contractx.ErrValidation)
	}

	decision := d.decide(ctx, req)
	log.Info().
		Str("requester", req.RequesterID).
		Str("agent", string(decision.Agent)).
		Str("rationale", decision.Rationale).
		Msg("request dispatched")

	result, err := d.handlers.forAgent(decision.Agent).Handle(ctx, req)
	return decision, result, err
}

func (d *Dispatcher) decide(ctx context.Context, req contractx.Request) contractx.DispatchDecision {
	if req.Forced() {
		return contractx.DispatchDecision{Agent: req.ExplicitAgent, Rationale: "explicit agent override"}
	}

	text := strings.ToLower(strings.TrimSpace(req.Text))
	for _, r := range d.rules {
		if r.match(text) {
			return contractx.DispatchDecision{Agent: r.agent, Rationale: r.rationale}
		}
	}

	return d.classify(ctx, req.Text)
}

// classify asks the model for a strategy label. Any failure or
// unrecognized reply defaults to Chat.
func (d *Dispatcher) classify(ctx context.Context, text string) contractx.DispatchDecision {
	reply, err := d.synth.Complete(ctx, d.classifierPrompt, text)
	if err != nil {
		log.Warn().Err(err).Msg("classification failed, defaulting to chat")
		return contractx.DispatchDecision{Agent: contractx.AgentChat, Rationale: "classification unavailable"}
	}

	m := labelPattern.FindStringSubmatch(reply)
	if m == nil {
		log.Warn().Str("reply", reply).Msg("unrecognized classification label, defaulting to chat")
		return contractx.DispatchDecision{Agent: contractx.AgentChat, Rationale: "unrecognized classification"}
	}

	decision := contractx.DispatchDecision{Agent: labelToAgent[m[1]]}
	if rationale := strings.TrimSpace(m[2]); rationale != "" {
		decision.Rationale = rationale
	} else {
		decision.Rationale = "classified as " + m[1]
	}
	return decision
}

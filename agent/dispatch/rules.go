package dispatch

import (
	"strings"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// rule matches clearly-typed requests before the model classifier runs.
// The first match wins.
type rule struct {
	agent     contractx.AgentType
	rationale string
	match     func(text string) bool
}

func hasAnyPrefix(text string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func hasAnyPhrase(text string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// defaultRules only fires on unambiguous intent markers. Anything
// subtler goes to the classifier.
func defaultRules() []rule {
	return []rule{
		{
			agent:     contractx.AgentResearch,
			rationale: "explicit research intent",
			match: func(text string) bool {
				return hasAnyPrefix(text, "research ", "deep dive ", "deep dive:") ||
					hasAnyPhrase(text, "comprehensive report", "in-depth analysis", "detailed report on")
			},
		},
		{
			agent:     contractx.AgentWebSearch,
			rationale: "explicit search intent",
			match: func(text string) bool {
				return hasAnyPrefix(text, "search for ", "search the web ", "look up ", "google ") ||
					hasAnyPhrase(text, "latest news", "current price", "what happened today")
			},
		},
	}
}

package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/decompose.txt
	decomposeRaw string

	//go:embed template/report.txt
	reportRaw string

	//go:embed template/chat.txt
	chatRaw string

	//go:embed template/websearch.txt
	websearchRaw string

	//go:embed template/knowledge.txt
	knowledgeRaw string

	//go:embed template/rephrase.txt
	rephraseRaw string
)

// PromptSet holds loaded system prompt content.
type PromptSet struct {
	Classifier string
	Decompose  string
	Report     string
	Chat       string
	WebSearch  string
	Knowledge  string
	Rephrase   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to
// call concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier: strings.TrimSpace(classifierRaw),
		Decompose:  strings.TrimSpace(decomposeRaw),
		Report:     strings.TrimSpace(reportRaw),
		Chat:       strings.TrimSpace(chatRaw),
		WebSearch:  strings.TrimSpace(websearchRaw),
		Knowledge:  strings.TrimSpace(knowledgeRaw),
		Rephrase:   strings.TrimSpace(rephraseRaw),
	}
}

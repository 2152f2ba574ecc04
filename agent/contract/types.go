package contract

import "time"

// AgentType identifies one of the four fixed processing strategies.
// The set is closed: routing happens through an explicit handler table,
// so adding a strategy means adding a constant, a handler field, and a
// classifier label in the same change.
type AgentType string

const (
	AgentKnowledgeBase AgentType = "knowledge_base"
	AgentWebSearch     AgentType = "web_search"
	AgentResearch      AgentType = "research"
	AgentChat          AgentType = "chat"
)

// Valid reports whether t is one of the known strategies.
func (t AgentType) Valid() bool {
	switch t {
	case AgentKnowledgeBase, AgentWebSearch, AgentResearch, AgentChat:
		return true
	}
	return false
}

// Request is a single inbound user request. Immutable once created.
// ExplicitAgent is empty for auto-classified requests; when set it is a
// hard override coming from a forced-agent command on the transport side.
type Request struct {
	RequesterID    string
	Text           string
	ExplicitAgent  AgentType
	ChannelContext string
}

// Forced reports whether the request carries an explicit agent override.
func (r Request) Forced() bool {
	return r.ExplicitAgent != ""
}

// DispatchDecision records which strategy handled a request and why.
// Produced per request, never persisted.
type DispatchDecision struct {
	Agent     AgentType
	Rationale string
}

// SearchResult is one ranked item returned by a SearchProvider.
// Rank starts at 1; lower is better.
type SearchResult struct {
	SourceURL string
	Title     string
	Snippet   string
	Rank      int
}

// SubQuery is one decomposed facet of a research topic. It exists only
// for the duration of a single research invocation.
type SubQuery struct {
	ParentTopic string
	Text        string
	Index       int
}

// ReportSection is one ordered section of a research report.
type ReportSection struct {
	Heading string
	Body    string
}

// ResearchReport is the synthesized output of the research pipeline.
// PartialFailureCount counts sub-queries that failed or timed out; a
// report is only produced when at least one sub-query succeeded.
type ResearchReport struct {
	Topic               string
	Sections            []ReportSection
	Sources             []string
	PartialFailureCount int
}

// MemoryRecord is one persisted conversational memory. Records are never
// mutated after creation, only superseded by newer records or deleted.
// ID doubles as the opaque reference into the vector index.
type MemoryRecord struct {
	ID        string
	OwnerID   string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Memory record roles. Each chat turn stores one record per role so that
// recall sees both sides of the exchange.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MemoryStatus summarizes one owner's stored memory. The timestamps are
// nil when the owner has no records.
type MemoryStatus struct {
	RecordCount     int
	OldestCreatedAt *time.Time
	NewestCreatedAt *time.Time
}

// Package research implements the parallel multi-query research
// pipeline: decompose a topic into sub-queries, search them
// concurrently, merge what survives, and synthesize one report.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

type Config struct {
	MinSubQueries   int           `envconfig:"MIN_SUB_QUERIES" split_words:"true" default:"3"`
	MaxSubQueries   int           `envconfig:"MAX_SUB_QUERIES" split_words:"true" default:"6"`
	QueryTimeout    time.Duration `envconfig:"QUERY_TIMEOUT" split_words:"true" default:"20s"`
	OverallTimeout  time.Duration `envconfig:"OVERALL_TIMEOUT" split_words:"true" default:"90s"`
	MaxContextChars int           `envconfig:"MAX_CONTEXT_CHARS" split_words:"true" default:"8000"`
	MemoryLimit     int           `envconfig:"MEMORY_LIMIT" split_words:"true" default:"5"`
}

func (c *Config) applyDefaults() {
	if c.MinSubQueries <= 0 {
		c.MinSubQueries = 3
	}
	if c.MaxSubQueries < c.MinSubQueries {
		c.MaxSubQueries = c.MinSubQueries
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 20 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 90 * time.Second
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = 8000
	}
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 5
	}
}

// Prompts carries the two generation prompts the pipeline needs.
type Prompts struct {
	Decompose string
	Report    string
}

// Pipeline runs research invocations. Memory is optional; when present,
// recalled records are added to the synthesis context read-only.
type Pipeline struct {
	synth   contractx.Synthesizer
	search  contractx.SearchProvider
	memory  contractx.MemoryStore
	prompts Prompts
	cfg     Config
	now     func() time.Time
}

var _ contractx.Handler = (*Pipeline)(nil)

func New(synth contractx.Synthesizer, search contractx.SearchProvider, memory contractx.MemoryStore, prompts Prompts, cfg Config) (*Pipeline, error) {
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	if search == nil {
		return nil, fmt.Errorf("%w: search provider is required", contractx.ErrValidation)
	}
	cfg.applyDefaults()

	return &Pipeline{
		synth:   synth,
		search:  search,
		memory:  memory,
		prompts: prompts,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// Handle runs research for the request text and formats the report.
func (p *Pipeline) Handle(ctx context.Context, req contractx.Request) (string, error) {
	report, err := p.Research(ctx, req.Text, req.RequesterID)
	if err != nil {
		return "", err
	}
	return FormatReport(report), nil
}

// Research decomposes the topic, fans sub-queries out concurrently, and
// synthesizes a report from whatever succeeded.
func (p *Pipeline) Research(ctx context.Context, topic, ownerID string) (*contractx.ResearchReport, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: research topic is empty", contractx.ErrValidation)
	}

	subQueries := p.decompose(ctx, topic)
	log.Info().Str("topic", topic).Int("sub_queries", len(subQueries)).Msg("research fan-out starting")

	outcomes := p.fanOut(ctx, subQueries)

	var merged []contractx.SearchResult
	var failed int
	for _, outcome := range outcomes {
		switch outcome.kind {
		case outcomeSuccess:
			merged = append(merged, outcome.results...)
		case outcomeTimeout:
			failed++
			log.Warn().Str("sub_query", outcome.query.Text).Msg("sub-query timed out")
		default:
			failed++
			log.Warn().Str("sub_query", outcome.query.Text).Err(outcome.err).Msg("sub-query failed")
		}
	}
	if failed == len(outcomes) {
		return nil, fmt.Errorf("%w: %d of %d sub-queries failed", contractx.ErrResearchFailed, failed, len(outcomes))
	}

	deduped := dedupeResults(merged)
	bounded := truncateResults(deduped, p.cfg.MaxContextChars)

	memoryContext := p.recallContext(ctx, ownerID, topic)

	text, err := p.synth.Complete(ctx, p.prompts.Report, buildReportPrompt(topic, bounded, memoryContext, p.now()))
	if err != nil {
		return nil, fmt.Errorf("%w: report generation: %v", contractx.ErrSynthesis, err)
	}

	sources := make([]string, 0, len(deduped))
	for _, r := range deduped {
		sources = append(sources, r.SourceURL)
	}

	return &contractx.ResearchReport{
		Topic:               topic,
		Sections:            parseSections(text),
		Sources:             sources,
		PartialFailureCount: failed,
	}, nil
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeFailure
	outcomeTimeout
)

type subQueryOutcome struct {
	query   contractx.SubQuery
	kind    outcomeKind
	results []contractx.SearchResult
	err     error
}

// fanOut runs every sub-query concurrently. Each task has its own
// timeout, and the whole batch shares one deadline; a failing branch
// never cancels its siblings.
func (p *Pipeline) fanOut(ctx context.Context, subQueries []contractx.SubQuery) []subQueryOutcome {
	batchCtx, cancel := context.WithTimeout(ctx, p.cfg.OverallTimeout)
	defer cancel()

	results := make(chan subQueryOutcome, len(subQueries))
	for _, sq := range subQueries {
		go func(sq contractx.SubQuery) {
			queryCtx, queryCancel := context.WithTimeout(batchCtx, p.cfg.QueryTimeout)
			defer queryCancel()

			found, err := p.search.Search(queryCtx, sq.Text)
			if err != nil {
				kind := outcomeFailure
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, contractx.ErrTimeout) {
					kind = outcomeTimeout
				}
				results <- subQueryOutcome{query: sq, kind: kind, err: err}
				return
			}
			results <- subQueryOutcome{query: sq, kind: outcomeSuccess, results: found}
		}(sq)
	}

	outcomes := make([]subQueryOutcome, 0, len(subQueries))
	for range subQueries {
		outcomes = append(outcomes, <-results)
	}
	return outcomes
}

func (p *Pipeline) recallContext(ctx context.Context, ownerID, topic string) []contractx.MemoryRecord {
	if p.memory == nil || strings.TrimSpace(ownerID) == "" {
		return nil
	}
	records, err := p.memory.Recall(ctx, ownerID, topic, p.cfg.MemoryLimit)
	if err != nil {
		// Memory is optional for research; proceed without it.
		log.Warn().Str("owner", ownerID).Err(err).Msg("memory recall skipped for research")
		return nil
	}
	return records
}

func buildReportPrompt(topic string, results []contractx.SearchResult, memories []contractx.MemoryRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date: %s\n\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Research topic: %s\n\n", topic)

	b.WriteString("Findings (ranked):\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, r.Title, r.SourceURL)
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
	}

	if len(memories) > 0 {
		b.WriteString("\nRelevant user context:\n")
		for _, m := range memories {
			fmt.Fprintf(&b, "- %s: %s\n", m.Role, m.Content)
		}
	}

	b.WriteString("\nWrite the research report now.")
	return b.String()
}

// FormatReport renders a report for the outbound reply, disclosing any
// partial failures rather than hiding them.
func FormatReport(report *contractx.ResearchReport) string {
	var b strings.Builder
	for i, section := range report.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if section.Heading != "" {
			fmt.Fprintf(&b, "# %s\n", section.Heading)
		}
		b.WriteString(section.Body)
	}

	if len(report.Sources) > 0 {
		b.WriteString("\n\n# Sources\n")
		for _, src := range report.Sources {
			fmt.Fprintf(&b, "- %s\n", src)
		}
	}

	if report.PartialFailureCount > 0 {
		fmt.Fprintf(&b, "\nNote: %d sub-quer%s failed or timed out; the report covers the remaining results.\n",
			report.PartialFailureCount, pluralIes(report.PartialFailureCount))
	}
	return strings.TrimSpace(b.String())
}

func pluralIes(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

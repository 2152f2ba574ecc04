package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/chat"
	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/dispatch"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/knowledge"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/llm"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/memory"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/prompt"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/research"
	"github.com/Shreyas9400/Discord-Agentic-Bot/agent/websearch"
	configx "github.com/Shreyas9400/Discord-Agentic-Bot/pkg/config"
	logx "github.com/Shreyas9400/Discord-Agentic-Bot/pkg/logger"
	searxngx "github.com/Shreyas9400/Discord-Agentic-Bot/pkg/searxng"
)

type AppConfig struct {
	RequesterID       string        `envconfig:"REQUESTER_ID" split_words:"true" default:"local"`
	MemoryClearWindow time.Duration `envconfig:"MEMORY_CLEAR_WINDOW" split_words:"true" default:"1h"`
	KnowledgeDir      string        `envconfig:"KNOWLEDGE_DIR" split_words:"true"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" split_words:"true" default:"3m"`
}

func main() {
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	appCfg := configx.MustNew[AppConfig]("APP")

	llmCfg := configx.MustNew[llm.Config]("LLM")
	client, err := llm.NewClient(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("llm client init failed")
	}

	searxCfg := configx.MustNew[searxngx.Config]("SEARXNG")
	search, err := searxngx.NewClient(*searxCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("searxng client init failed")
	}

	store, err := buildMemoryStore(context.Background(), client)
	if err != nil {
		log.Fatal().Err(err).Msg("memory store init failed")
	}

	prompts := prompt.LoadPromptSet()

	corpus, err := buildCorpus(context.Background(), client, appCfg.KnowledgeDir)
	if err != nil {
		log.Fatal().Err(err).Msg("knowledge corpus init failed")
	}

	knowledgeHandler, err := knowledge.New(client, corpus, prompts.Knowledge)
	if err != nil {
		log.Fatal().Err(err).Msg("knowledge handler init failed")
	}

	searchHandler, err := websearch.New(client, search, store,
		websearch.Prompts{Rephrase: prompts.Rephrase, Answer: prompts.WebSearch},
		*configx.MustNew[websearch.Config]("WEBSEARCH"))
	if err != nil {
		log.Fatal().Err(err).Msg("web search handler init failed")
	}

	researchHandler, err := research.New(client.WithModel(llmCfg.ResearchModel), search, store,
		research.Prompts{Decompose: prompts.Decompose, Report: prompts.Report},
		*configx.MustNew[research.Config]("RESEARCH"))
	if err != nil {
		log.Fatal().Err(err).Msg("research pipeline init failed")
	}

	chatHandler, err := chat.New(client.WithModel(llmCfg.ChatModel), store, prompts.Chat,
		*configx.MustNew[chat.Config]("CHAT"))
	if err != nil {
		log.Fatal().Err(err).Msg("chat handler init failed")
	}

	dispatcher, err := dispatch.New(dispatch.Handlers{
		KnowledgeBase: knowledgeHandler,
		WebSearch:     searchHandler,
		Research:      researchHandler,
		Chat:          chatHandler,
	}, client.WithModel(llmCfg.ClassifierModel), prompts.Classifier)
	if err != nil {
		log.Fatal().Err(err).Msg("dispatcher init failed")
	}

	runLoop(dispatcher, store, *appCfg)
}

// buildMemoryStore picks the durable Postgres backend when a DSN is
// configured, the embedded store otherwise.
func buildMemoryStore(ctx context.Context, embedder memory.Embedder) (contractx.MemoryStore, error) {
	pgCfg := configx.MustNew[memory.PostgresConfig]("MEMORY")
	if strings.TrimSpace(pgCfg.DSN) != "" {
		return memory.NewPostgresStore(ctx, *pgCfg, embedder)
	}
	return memory.NewChromemStore(embedder)
}

// buildCorpus indexes .txt and .md files from dir. No dir means an
// empty corpus; lookups then fall back to model knowledge.
func buildCorpus(ctx context.Context, embedder knowledge.Embedder, dir string) (*knowledge.Corpus, error) {
	var docs []knowledge.Document
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read knowledge dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("read knowledge file %s: %w", entry.Name(), err)
			}
			docs = append(docs, knowledge.Document{
				Title: strings.TrimSuffix(entry.Name(), ext),
				Text:  string(data),
			})
		}
	}
	return knowledge.NewCorpus(ctx, embedder, docs)
}

// forcedCommands map the bot's force commands onto explicit agents.
var forcedCommands = map[string]contractx.AgentType{
	"!force_knowledge": contractx.AgentKnowledgeBase,
	"!force_search":    contractx.AgentWebSearch,
	"!force_research":  contractx.AgentResearch,
	"!force_chat":      contractx.AgentChat,
}

// runLoop reads requests line by line until EOF, standing in for the
// chat transport.
func runLoop(dispatcher *dispatch.Dispatcher, store contractx.MemoryStore, cfg AppConfig) {
	fmt.Println("ready (commands: !force_search, !force_research, !force_knowledge, !force_chat, !memory_status, !clear_memory)")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		reply := handleLine(ctx, dispatcher, store, cfg, line)
		cancel()

		fmt.Println(reply)
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("input read failed")
	}
}

func handleLine(ctx context.Context, dispatcher *dispatch.Dispatcher, store contractx.MemoryStore, cfg AppConfig, line string) string {
	switch {
	case line == "!memory_status":
		status, err := store.Status(ctx, cfg.RequesterID)
		if err != nil {
			return "memory status unavailable: " + err.Error()
		}
		return formatStatus(status)

	case line == "!clear_memory":
		removed, err := store.ClearRecent(ctx, cfg.RequesterID, cfg.MemoryClearWindow)
		if err != nil {
			return "memory clear failed: " + err.Error()
		}
		return fmt.Sprintf("cleared %d record(s) from the last %s", removed, cfg.MemoryClearWindow)
	}

	req := contractx.Request{RequesterID: cfg.RequesterID, Text: line}
	if cmd, rest, ok := splitCommand(line); ok {
		if agent, found := forcedCommands[cmd]; found {
			if rest == "" {
				return cmd + " needs a request after the command"
			}
			req.Text = rest
			req.ExplicitAgent = agent
		}
	}

	decision, result, err := dispatcher.Dispatch(ctx, req)
	if err != nil {
		log.Error().Str("agent", string(decision.Agent)).Err(err).Msg("request failed")
		return "request failed: " + err.Error()
	}
	return result
}

func splitCommand(line string) (cmd, rest string, ok bool) {
	if !strings.HasPrefix(line, "!") {
		return "", "", false
	}
	cmd, rest, _ = strings.Cut(line, " ")
	return cmd, strings.TrimSpace(rest), true
}

func formatStatus(status contractx.MemoryStatus) string {
	if status.RecordCount == 0 {
		return "memory: 0 records"
	}
	return fmt.Sprintf("memory: %d records, oldest %s, newest %s",
		status.RecordCount,
		status.OldestCreatedAt.Format(time.RFC3339),
		status.NewestCreatedAt.Format(time.RFC3339))
}

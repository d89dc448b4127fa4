package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"mindscribe.app/journal-assistant/internal/fault"
	"mindscribe.app/journal-assistant/internal/metrics"
	"mindscribe.app/journal-assistant/internal/render"
	"mindscribe.app/journal-assistant/internal/store"
)

// Pipeline runs a journal entry through its five stages:
// CREATED -> CATEGORIZED -> ANALYZED -> VISUALIZED -> DELIVERED.
// Stages are monotonic and each one commits its own store update keyed by
// the entry ID assigned at CREATED, so an interrupted run leaves the entry
// readable at its last committed stage. Enrichment stages degrade and
// continue on safety blocks or unparseable responses; only store and
// transport failures surface to the caller.
type Pipeline struct {
	store         *store.FileStore
	ai            *AIClient
	ledger        *Ledger
	normalizer    *Normalizer
	renderer      render.Renderer
	metrics       *metrics.Collector
	historyWindow int
	now           func() time.Time
}

func NewPipeline(
	st *store.FileStore,
	ai *AIClient,
	ledger *Ledger,
	normalizer *Normalizer,
	renderer render.Renderer,
	collector *metrics.Collector,
	historyWindow int,
) *Pipeline {
	if historyWindow <= 0 {
		historyWindow = 5
	}
	return &Pipeline{
		store:         st,
		ai:            ai,
		ledger:        ledger,
		normalizer:    normalizer,
		renderer:      renderer,
		metrics:       collector,
		historyWindow: historyWindow,
		now:           time.Now,
	}
}

// AnalysisResult is what RunAnalysis hands back to the conversation layer.
type AnalysisResult struct {
	EntryID           string `json:"entry_id"`
	AnalysisText      string `json:"analysis_text"`
	VisualizationPath string `json:"visualization_path,omitempty"`
}

// SubmitEntry normalizes the input and persists stage 1. It returns once
// the entry is CREATED; analysis is a separate call.
func (p *Pipeline) SubmitEntry(ctx context.Context, userID string, in Input) (store.JournalEntry, error) {
	text, err := p.normalizer.Normalize(ctx, userID, in)
	if err != nil {
		return store.JournalEntry{}, err
	}
	if strings.TrimSpace(text) == "" {
		return store.JournalEntry{}, fault.Errorf(fault.MalformedResponse, "pipeline.SubmitEntry", "input produced no text")
	}

	entry := store.JournalEntry{
		EntryID:       uuid.NewString(),
		UserID:        userID,
		CreatedAt:     p.now(),
		InputModality: in.Modality,
		RawText:       text,
		WordCount:     len(strings.Fields(text)),
		Stage:         store.StageCreated,
	}
	if err := p.store.AppendEntry(entry); err != nil {
		p.metrics.RecordStage("created", "failed")
		return store.JournalEntry{}, err
	}
	p.metrics.RecordStage("created", "ok")
	log.Printf("Journal entry %s created for user %s (%s, %d words)", entry.EntryID, userID, entry.InputModality, entry.WordCount)
	return entry, nil
}

// RunAnalysis drives stages 2-5 for an existing entry. Every store update
// targets the entry ID assigned at CREATED, never "the latest entry for the
// user". DELIVERED is terminal: a repeat call returns the stored result
// without touching the entry. An entry left mid-pipeline by an earlier
// failure resumes from its last committed stage.
func (p *Pipeline) RunAnalysis(ctx context.Context, entryID string) (*AnalysisResult, error) {
	entry, err := p.store.GetEntry(entryID)
	if err != nil {
		return nil, err
	}

	if entry.Stage == store.StageDelivered {
		return &AnalysisResult{
			EntryID:           entry.EntryID,
			AnalysisText:      entry.AnalysisText,
			VisualizationPath: entry.VisualizationPath,
		}, nil
	}

	if entry.Stage.Before(store.StageCategorized) {
		entry, err = p.categorize(ctx, entry)
		if err != nil {
			return nil, err
		}
	}

	// The graph description only exists within the run that produced it, so
	// a run resuming past ANALYZED skips visualization.
	var dot string
	if entry.Stage.Before(store.StageAnalyzed) {
		entry, dot, err = p.analyze(ctx, entry)
		if err != nil {
			return nil, err
		}
	}

	if entry.Stage.Before(store.StageVisualized) {
		entry, err = p.visualize(ctx, entry, dot)
		if err != nil {
			return nil, err
		}
	}

	if err := p.advance(entry.EntryID, store.StageDelivered, nil); err != nil {
		return nil, err
	}
	p.metrics.RecordStage("delivered", "ok")

	return &AnalysisResult{
		EntryID:           entry.EntryID,
		AnalysisText:      entry.AnalysisText,
		VisualizationPath: entry.VisualizationPath,
	}, nil
}

// GetUsage reports the caller's inference cost counters.
func (p *Pipeline) GetUsage(userID string) (store.UsageRecord, error) {
	return p.ledger.Report(userID)
}

// Entries lists the user's journal entries in chronological order.
func (p *Pipeline) Entries(userID string) ([]store.JournalEntry, error) {
	return p.store.EntriesByUser(userID, 0)
}

// categorize is stage 2. Safety blocks and unparseable responses leave the
// fields empty and the entry still advances; transport failures surface to
// the caller, same as in analyze.
func (p *Pipeline) categorize(ctx context.Context, entry store.JournalEntry) (store.JournalEntry, error) {
	var cat Categorization
	parsed := false

	resp, err := p.ai.Generate(ctx, entry.UserID, genai.Text(categorizationPrompt(entry.RawText)))
	switch {
	case err == nil:
		if cat, parsed = ParseCategorization(resp); !parsed {
			log.Printf("Categorization response unparseable for entry %s", entry.EntryID)
			p.metrics.RecordStage("categorized", "degraded")
		} else {
			p.metrics.RecordStage("categorized", "ok")
		}
	case fault.IsKind(err, fault.SafetyBlocked) || fault.IsKind(err, fault.MalformedResponse):
		log.Printf("Categorization degraded for entry %s: %v", entry.EntryID, err)
		p.metrics.RecordStage("categorized", "degraded")
	default:
		p.metrics.RecordStage("categorized", "failed")
		return entry, err
	}

	err = p.advance(entry.EntryID, store.StageCategorized, func(e *store.JournalEntry) {
		if parsed {
			e.Sentiment = cat.Sentiment
			e.Topics = cat.Topics
			e.Categories = cat.Categories
		}
	})
	if err != nil {
		return entry, err
	}
	if parsed {
		entry.Sentiment = cat.Sentiment
		entry.Topics = cat.Topics
		entry.Categories = cat.Categories
	}
	entry.Stage = store.StageCategorized
	return entry, nil
}

// analyze is stage 3. Transport failures surface to the caller; safety
// blocks and empty responses degrade to a placeholder analysis.
func (p *Pipeline) analyze(ctx context.Context, entry store.JournalEntry) (store.JournalEntry, string, error) {
	history, err := p.priorEntries(entry)
	if err != nil {
		log.Printf("Could not load history for entry %s, analyzing without context: %v", entry.EntryID, err)
		history = nil
	}

	analysisText := ""
	dot := ""
	resp, err := p.ai.Generate(ctx, entry.UserID, genai.Text(analysisPrompt(entry, history)))
	switch {
	case err == nil:
		analysisText, dot = SplitAnalysis(resp)
		p.metrics.RecordStage("analyzed", "ok")
	case fault.IsKind(err, fault.SafetyBlocked) || fault.IsKind(err, fault.MalformedResponse):
		log.Printf("Analysis degraded for entry %s: %v", entry.EntryID, err)
		p.metrics.RecordStage("analyzed", "degraded")
	default:
		p.metrics.RecordStage("analyzed", "failed")
		return entry, "", err
	}
	if analysisText == "" {
		analysisText = "Analysis is unavailable for this entry."
	}

	if err := p.advance(entry.EntryID, store.StageAnalyzed, func(e *store.JournalEntry) {
		e.AnalysisText = analysisText
	}); err != nil {
		return entry, "", err
	}
	entry.AnalysisText = analysisText
	entry.Stage = store.StageAnalyzed
	return entry, dot, nil
}

// visualize is stage 4. A missing graph description or a renderer rejection
// both mean "no mind map", never a pipeline failure.
func (p *Pipeline) visualize(ctx context.Context, entry store.JournalEntry, dot string) (store.JournalEntry, error) {
	if dot == "" {
		p.metrics.RecordStage("visualized", "degraded")
		return entry, nil
	}

	path, err := p.renderer.Render(ctx, dot)
	if err != nil {
		log.Printf("Renderer rejected graph for entry %s: %v", entry.EntryID, err)
		p.metrics.RecordStage("visualized", "degraded")
		return entry, nil
	}

	if err := p.advance(entry.EntryID, store.StageVisualized, func(e *store.JournalEntry) {
		e.VisualizationPath = path
	}); err != nil {
		return entry, err
	}
	p.metrics.RecordStage("visualized", "ok")
	entry.VisualizationPath = path
	entry.Stage = store.StageVisualized
	return entry, nil
}

// advance commits one stage's fields plus the stage marker in a single
// read-modify-write against the entry ID. Stage transitions are
// one-directional: an entry already at or past the target stage is left
// untouched.
func (p *Pipeline) advance(entryID string, stage store.Stage, apply func(*store.JournalEntry)) error {
	return p.store.UpdateEntry(entryID, func(e *store.JournalEntry) error {
		if !e.Stage.Before(stage) {
			return nil
		}
		if apply != nil {
			apply(e)
		}
		e.Stage = stage
		return nil
	})
}

// priorEntries returns up to historyWindow of the user's entries created
// before this one.
func (p *Pipeline) priorEntries(entry store.JournalEntry) ([]store.JournalEntry, error) {
	all, err := p.store.EntriesByUser(entry.UserID, 0)
	if err != nil {
		return nil, err
	}
	var prior []store.JournalEntry
	for _, e := range all {
		if e.EntryID != entry.EntryID && !e.CreatedAt.After(entry.CreatedAt) {
			prior = append(prior, e)
		}
	}
	if len(prior) > p.historyWindow {
		prior = prior[len(prior)-p.historyWindow:]
	}
	return prior, nil
}

func categorizationPrompt(text string) string {
	return fmt.Sprintf(`Analyze the journal entry below.
---
%s
---
Provide:
1. Sentiment: (Positive/Negative/Neutral)
2. Topics: (1-3 brief topics)
3. Categories: (choose from: [%s])
Respond ONLY in this format:
Sentiment: [sentiment]
Topics: [topic, topic]
Categories: [category, category]`, text, strings.Join(journalCategories, ", "))
}

func analysisPrompt(entry store.JournalEntry, history []store.JournalEntry) string {
	var b strings.Builder
	b.WriteString("Act as a thoughtful journaling companion. Analyze the most recent entry against the ")
	b.WriteString("earlier entries. Note patterns and changes over time. Give structured, supportive insight. ")
	b.WriteString("Do not give medical advice.\n\n")

	fmt.Fprintf(&b, "Most recent entry (%s):\n", entry.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Sentiment: %s, Topics: %s, Categories: %s\nText:\n---\n%s\n---\n",
		entry.Sentiment, strings.Join(entry.Topics, ", "), strings.Join(entry.Categories, ", "), entry.RawText)

	if len(history) == 0 {
		b.WriteString("\nThis is the user's first entry.\n")
	} else {
		fmt.Fprintf(&b, "\nPrevious entries (most recent %d):\n", len(history))
		for _, e := range history {
			fmt.Fprintf(&b, "- %s: Sentiment=%s, Topics=%s, Categories=%s\n",
				e.CreatedAt.Format("2006-01-02"), e.Sentiment,
				strings.Join(e.Topics, ", "), strings.Join(e.Categories, ", "))
		}
	}

	b.WriteString("\nRespond with your analysis first, then a mind map of the entry's thematic structure ")
	b.WriteString("as Graphviz DOT between these exact markers:\n")
	b.WriteString(dotStartMarker + "\n")
	b.WriteString("digraph JournalMap { rankdir=LR; node [shape=box, style=rounded]; }\n")
	b.WriteString(dotEndMarker + "\n")
	return b.String()
}

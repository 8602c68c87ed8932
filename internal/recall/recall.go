// Package recall ranks prior decisions, outcomes, constraints, work items
// and agent tasks by relevance to a query context. Read-only: the engine
// never mutates the corpus and emits no events.
package recall

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/models"
)

// DefaultLimit caps each ranked category when the context gives no limit.
const DefaultLimit = 10

// Scoring weights. The first four cap their component; the boosts stack on
// top, so a score can exceed 100.
const (
	maxTextScore    = 40
	maxTagScore     = 25
	maxFileScore    = 25
	maxRecencyScore = 10
	recencyWindow   = 30 // days

	boostDidntWork    = 15
	boostMixed        = 10
	boostBlockingRule = 15
)

// Context is the recall query. At least one of Query, Tags, Files or
// Keywords must be set.
type Context struct {
	Query    string     `json:"query,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	Files    []string   `json:"files,omitempty"`
	Keywords []string   `json:"keywords,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}

// Validate rejects a context with no search signal. Recall with nothing to
// match on is a hard input error, not an empty result.
func (c *Context) Validate() error {
	if strings.TrimSpace(c.Query) == "" && len(c.Tags) == 0 && len(c.Files) == 0 && len(c.Keywords) == 0 {
		return fault.Validationf("recall context requires at least one of query, tags, files or keywords")
	}
	return nil
}

// Corpus is the project history recall scores against. A missing table
// upstream simply yields an empty slice here.
type Corpus struct {
	Decisions   []models.Decision
	Outcomes    []models.Outcome
	Constraints []models.Constraint
	WorkItems   []models.WorkItem
	AgentTasks  []models.AgentTask
}

// Scored pairs an entity with its relevance score and the reason it ranked.
type Scored[T any] struct {
	Item   T      `json:"item"`
	Score  int    `json:"relevance_score"`
	Reason string `json:"relevance_reason"`
}

// Summary aggregates the ranked categories.
type Summary struct {
	Decisions   int `json:"decisions"`
	Outcomes    int `json:"outcomes"`
	Constraints int `json:"constraints"`
	WorkItems   int `json:"work_items"`
	AgentTasks  int `json:"agent_tasks"`
	MaxScore    int `json:"max_score"`
}

// Result is the ranked output per category plus the aggregate summary.
type Result struct {
	Decisions   []Scored[models.Decision]   `json:"decisions,omitempty"`
	Outcomes    []Scored[models.Outcome]    `json:"outcomes,omitempty"`
	Constraints []Scored[models.Constraint] `json:"constraints,omitempty"`
	WorkItems   []Scored[models.WorkItem]   `json:"work_items,omitempty"`
	AgentTasks  []Scored[models.AgentTask]  `json:"agent_tasks,omitempty"`
	Summary     Summary                     `json:"summary"`
}

// doc is the scoring view of one corpus item.
type doc struct {
	text      string // concatenated, lower-cased text fields
	tags      []string
	createdAt time.Time
	boost     int // outcome-result or blocking-constraint boost
	boostNote string
}

// Recall scores the corpus against the context and returns the ranked
// result. now is injected so recency is testable.
func Recall(ctx Context, corpus Corpus, now time.Time) (*Result, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if ctx.Limit <= 0 {
		ctx.Limit = DefaultLimit
	}

	terms := searchTerms(ctx)
	result := &Result{}

	result.Decisions = rank(ctx, terms, now, corpus.Decisions, decisionDoc)
	result.Outcomes = rank(ctx, terms, now, corpus.Outcomes, outcomeDoc)
	result.Constraints = rank(ctx, terms, now, corpus.Constraints, constraintDoc)
	result.WorkItems = rank(ctx, terms, now, corpus.WorkItems, workItemDoc)
	result.AgentTasks = rank(ctx, terms, now, corpus.AgentTasks, agentTaskDoc)

	result.Summary = Summary{
		Decisions:   len(result.Decisions),
		Outcomes:    len(result.Outcomes),
		Constraints: len(result.Constraints),
		WorkItems:   len(result.WorkItems),
		AgentTasks:  len(result.AgentTasks),
	}
	for _, s := range result.Decisions {
		result.Summary.MaxScore = maxInt(result.Summary.MaxScore, s.Score)
	}
	for _, s := range result.Outcomes {
		result.Summary.MaxScore = maxInt(result.Summary.MaxScore, s.Score)
	}
	for _, s := range result.Constraints {
		result.Summary.MaxScore = maxInt(result.Summary.MaxScore, s.Score)
	}
	for _, s := range result.WorkItems {
		result.Summary.MaxScore = maxInt(result.Summary.MaxScore, s.Score)
	}
	for _, s := range result.AgentTasks {
		result.Summary.MaxScore = maxInt(result.Summary.MaxScore, s.Score)
	}
	return result, nil
}

// searchTerms builds the deduplicated term set: lower-cased whitespace
// split query, unioned with lower-cased keywords and tags.
func searchTerms(ctx Context) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	for _, word := range strings.Fields(ctx.Query) {
		add(word)
	}
	for _, kw := range ctx.Keywords {
		add(kw)
	}
	for _, tag := range ctx.Tags {
		add(tag)
	}
	return terms
}

// rank scores every item in one category, drops zero scores, sorts
// descending and truncates to the context limit.
func rank[T any](ctx Context, terms []string, now time.Time, items []T, view func(T) doc) []Scored[T] {
	var scored []Scored[T]
	for _, item := range items {
		d := view(item)
		if !inRange(d.createdAt, ctx.Since, ctx.Until) {
			continue
		}
		score, reason := scoreDoc(d, terms, ctx, now)
		if score == 0 {
			continue
		}
		scored = append(scored, Scored[T]{Item: item, Score: score, Reason: reason})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > ctx.Limit {
		scored = scored[:ctx.Limit]
	}
	return scored
}

// inRange applies the since/until bounds uniformly across categories.
func inRange(t time.Time, since, until *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if until != nil && t.After(*until) {
		return false
	}
	return true
}

// scoreDoc sums the component contributions and rounds to an integer.
func scoreDoc(d doc, terms []string, ctx Context, now time.Time) (int, string) {
	var score float64
	var notes []string

	if len(terms) > 0 {
		matched := 0
		for _, term := range terms {
			if strings.Contains(d.text, term) {
				matched++
			}
		}
		if matched > 0 {
			contribution := float64(matched) / float64(len(terms)) * maxTextScore
			score += contribution
			notes = append(notes, fmt.Sprintf("matches %d/%d terms", matched, len(terms)))
		}
	}

	if len(ctx.Tags) > 0 && len(d.tags) > 0 {
		itemTags := make(map[string]bool, len(d.tags))
		for _, tag := range d.tags {
			itemTags[strings.ToLower(tag)] = true
		}
		overlap := 0
		for _, tag := range ctx.Tags {
			if itemTags[strings.ToLower(tag)] {
				overlap++
			}
		}
		if overlap > 0 {
			score += float64(overlap) / float64(len(ctx.Tags)) * maxTagScore
			notes = append(notes, fmt.Sprintf("shares %d tag(s)", overlap))
		}
	}

	if len(ctx.Files) > 0 {
		matched := 0
		for _, file := range ctx.Files {
			if fileTokensInText(file, d.text) {
				matched++
			}
		}
		if matched > 0 {
			score += float64(matched) / float64(len(ctx.Files)) * maxFileScore
			notes = append(notes, fmt.Sprintf("references %d file(s)", matched))
		}
	}

	ageDays := now.Sub(d.createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays < recencyWindow {
		score += (recencyWindow - ageDays) / recencyWindow * maxRecencyScore
		notes = append(notes, "recent")
	}

	if d.boost > 0 {
		score += float64(d.boost)
		notes = append(notes, d.boostNote)
	}

	rounded := int(math.Round(score))
	if rounded == 0 {
		return 0, ""
	}
	return rounded, strings.Join(notes, "; ")
}

// fileTokensInText reports whether any path segment of file appears in the
// item text. Segments shorter than three characters are skipped to avoid
// noise matches on extensions and single letters.
func fileTokensInText(file, text string) bool {
	for _, segment := range strings.Split(strings.ToLower(file), "/") {
		segment = strings.TrimSpace(segment)
		if base, _, found := strings.Cut(segment, "."); found && len(base) >= 3 {
			if strings.Contains(text, base) {
				return true
			}
		}
		if len(segment) >= 3 && strings.Contains(text, segment) {
			return true
		}
	}
	return false
}

// --- scoring views per category ---

func joinLower(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}

func decisionDoc(d models.Decision) doc {
	return doc{
		text:      joinLower(d.Title, strings.Join(d.Options, " "), d.Choice, d.Rationale, strings.Join(d.Tags, " ")),
		tags:      d.Tags,
		createdAt: d.CreatedAt,
	}
}

func outcomeDoc(o models.Outcome) doc {
	d := doc{
		text:      joinLower(o.SubjectType, o.SubjectID, string(o.Result), o.RootCause, o.Recommendation, strings.Join(o.Tags, " ")),
		tags:      o.Tags,
		createdAt: o.CreatedAt,
	}
	// Failures are the memories worth resurfacing before a risky decision.
	switch o.Result {
	case models.OutcomeDidntWork:
		d.boost = boostDidntWork
		d.boostNote = "past failure"
	case models.OutcomeMixed:
		d.boost = boostMixed
		d.boostNote = "mixed outcome"
	}
	return d
}

func constraintDoc(c models.Constraint) doc {
	d := doc{
		text:      joinLower(string(c.Scope), c.ScopeValue, string(c.Trigger), c.TriggerValue, c.RuleText, strings.Join(c.Tags, " ")),
		tags:      c.Tags,
		createdAt: c.CreatedAt,
	}
	if c.Enforcement == models.EnforceBlock {
		d.boost = boostBlockingRule
		d.boostNote = "blocking rule"
	}
	return d
}

func workItemDoc(w models.WorkItem) doc {
	return doc{
		text:      joinLower(w.Title, w.Notes, strings.Join(w.Tags, " ")),
		tags:      w.Tags,
		createdAt: w.CreatedAt,
	}
}

func agentTaskDoc(a models.AgentTask) doc {
	return doc{
		text:      joinLower(a.Agent, a.Summary, strings.Join(a.Tags, " ")),
		tags:      a.Tags,
		createdAt: a.CreatedAt,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package recall

import (
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/fault"
	"github.com/wardenhq/warden/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

func TestRecall_NoSignalRejected(t *testing.T) {
	_, err := Recall(Context{}, Corpus{}, now)
	if err == nil {
		t.Fatal("Expected a context without signal to be rejected")
	}
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("Expected a validation error, got %v", err)
	}
}

func TestRecall_TextMatching(t *testing.T) {
	corpus := Corpus{
		Decisions: []models.Decision{
			{Title: "use postgres for storage", Choice: "postgres", CreatedAt: daysAgo(60)},
			{Title: "pick a css framework", Choice: "tailwind", CreatedAt: daysAgo(60)},
		},
	}

	result, err := Recall(Context{Query: "postgres storage"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.Decisions) != 1 {
		t.Fatalf("Expected only the matching decision, got %d", len(result.Decisions))
	}
	if result.Decisions[0].Item.Choice != "postgres" {
		t.Errorf("Unexpected decision ranked: %+v", result.Decisions[0])
	}
	if result.Decisions[0].Score <= 0 {
		t.Error("Expected a positive score")
	}
}

func TestRecall_MoreTermsScoreHigher(t *testing.T) {
	corpus := Corpus{
		Decisions: []models.Decision{
			{ID: "both", Title: "cache invalidation strategy", Choice: "ttl", CreatedAt: daysAgo(60)},
			{ID: "one", Title: "cache sizing", Choice: "lru", CreatedAt: daysAgo(60)},
		},
	}

	result, err := Recall(Context{Query: "cache invalidation"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.Decisions) != 2 {
		t.Fatalf("Expected both decisions ranked, got %d", len(result.Decisions))
	}
	if result.Decisions[0].Item.ID != "both" {
		t.Errorf("Expected the two-term match to rank first, got %s", result.Decisions[0].Item.ID)
	}
	if result.Decisions[0].Score <= result.Decisions[1].Score {
		t.Error("Expected strictly higher score for more matched terms")
	}
}

func TestRecall_RecencyBounds(t *testing.T) {
	corpus := Corpus{
		WorkItems: []models.WorkItem{
			{ID: "fresh", Title: "widget cleanup", CreatedAt: now},
			{ID: "stale", Title: "widget cleanup", CreatedAt: daysAgo(45)},
		},
	}

	result, err := Recall(Context{Query: "widget"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.WorkItems) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(result.WorkItems))
	}

	fresh, stale := result.WorkItems[0], result.WorkItems[1]
	if fresh.Item.ID != "fresh" {
		t.Fatal("Expected the fresh item to rank first")
	}
	// Text components are identical, so the gap is pure recency: 10 at age
	// zero, 0 past the 30-day window.
	if fresh.Score-stale.Score != maxRecencyScore {
		t.Errorf("Expected a %d point recency gap, got %d", maxRecencyScore, fresh.Score-stale.Score)
	}
}

func TestRecall_FailureBoost(t *testing.T) {
	corpus := Corpus{
		Outcomes: []models.Outcome{
			{ID: "bad", SubjectID: "d1", Result: models.OutcomeDidntWork, RootCause: "orm migrations clashed", CreatedAt: daysAgo(40)},
			{ID: "good", SubjectID: "d2", Result: models.OutcomeWorked, RootCause: "orm worked fine", CreatedAt: daysAgo(40)},
		},
	}

	result, err := Recall(Context{Query: "orm"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(result.Outcomes))
	}
	if result.Outcomes[0].Item.ID != "bad" {
		t.Error("Expected the failure to outrank the success")
	}
	if result.Outcomes[0].Score-result.Outcomes[1].Score != boostDidntWork {
		t.Errorf("Expected a %d point failure boost, got %d",
			boostDidntWork, result.Outcomes[0].Score-result.Outcomes[1].Score)
	}
}

func TestRecall_BlockingConstraintBoost(t *testing.T) {
	corpus := Corpus{
		Constraints: []models.Constraint{
			{ID: "hard", RuleText: "never touch billing", Enforcement: models.EnforceBlock, CreatedAt: daysAgo(40)},
			{ID: "soft", RuleText: "never touch billing", Enforcement: models.EnforceWarn, CreatedAt: daysAgo(40)},
		},
	}

	result, err := Recall(Context{Query: "billing"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if result.Constraints[0].Item.ID != "hard" {
		t.Error("Expected the blocking constraint to rank first")
	}
}

func TestRecall_TagOverlap(t *testing.T) {
	corpus := Corpus{
		Decisions: []models.Decision{
			{ID: "tagged", Title: "a", Choice: "x", Tags: []string{"auth", "security"}, CreatedAt: daysAgo(40)},
			{ID: "plain", Title: "b", Choice: "y", CreatedAt: daysAgo(40)},
		},
	}

	result, err := Recall(Context{Tags: []string{"auth"}}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	// The untagged decision has no text or tag match and scores zero.
	if len(result.Decisions) != 1 || result.Decisions[0].Item.ID != "tagged" {
		t.Errorf("Expected only the tagged decision, got %+v", result.Decisions)
	}
}

func TestRecall_FileOverlap(t *testing.T) {
	corpus := Corpus{
		Decisions: []models.Decision{
			{ID: "hit", Title: "refactored the scheduler loop", Choice: "keep ticker", CreatedAt: daysAgo(40)},
		},
	}

	result, err := Recall(Context{Files: []string{"internal/scheduler/loop.go"}}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.Decisions) != 1 {
		t.Fatalf("Expected the path segment to match the decision text, got %d results", len(result.Decisions))
	}
}

func TestRecall_LimitApplied(t *testing.T) {
	var corpus Corpus
	for i := 0; i < 15; i++ {
		corpus.WorkItems = append(corpus.WorkItems, models.WorkItem{
			Title:     "deploy checklist",
			CreatedAt: daysAgo(40),
		})
	}

	result, err := Recall(Context{Query: "deploy", Limit: 3}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.WorkItems) != 3 {
		t.Errorf("Expected limit 3, got %d", len(result.WorkItems))
	}

	result, err = Recall(Context{Query: "deploy"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.WorkItems) != DefaultLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultLimit, len(result.WorkItems))
	}
}

func TestRecall_TimeWindow(t *testing.T) {
	since := daysAgo(10)
	corpus := Corpus{
		Decisions: []models.Decision{
			{ID: "recent", Title: "logging format", Choice: "json", CreatedAt: daysAgo(5)},
			{ID: "old", Title: "logging format", Choice: "text", CreatedAt: daysAgo(20)},
		},
	}

	result, err := Recall(Context{Query: "logging", Since: &since}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if len(result.Decisions) != 1 || result.Decisions[0].Item.ID != "recent" {
		t.Errorf("Expected the since bound to drop the old decision, got %+v", result.Decisions)
	}
}

func TestRecall_SummaryMaxScore(t *testing.T) {
	corpus := Corpus{
		Decisions: []models.Decision{
			{Title: "alpha beta", Choice: "x", CreatedAt: daysAgo(40)},
		},
	}

	result, err := Recall(Context{Query: "alpha"}, corpus, now)
	if err != nil {
		t.Fatalf("Recall failed: %v", err)
	}
	if result.Summary.Decisions != 1 {
		t.Errorf("Expected summary to count 1 decision, got %d", result.Summary.Decisions)
	}
	if result.Summary.MaxScore != result.Decisions[0].Score {
		t.Errorf("Expected summary max score %d, got %d",
			result.Decisions[0].Score, result.Summary.MaxScore)
	}
}

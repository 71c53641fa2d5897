// ABOUTME: End-to-end tests for the Service facade over fakes
// ABOUTME: Leave-policy scenario, session isolation and failed-ask semantics
package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/harper/askdocs/internal/models"
)

func newTestService(t *testing.T) (*Service, *fakeLLM) {
	t.Helper()
	return newTestServiceWithMemory(t, MemoryConfig{})
}

func newTestServiceWithMemory(t *testing.T, cfg MemoryConfig) (*Service, *fakeLLM) {
	t.Helper()
	embedder := newFakeEmbedder()
	llm := newFakeLLM()
	index := NewIndexManager(newTestChunker(), embedder, &memStore{}, nil)
	chain := NewRetrievalChain(index, llm, ChainConfig{}, nil)
	memory := NewConversationMemory(cfg)
	return NewService(index, chain, memory, nil), llm
}

func mustHistory(t *testing.T, svc *Service, sessionID string) []models.Turn {
	t.Helper()
	turns, err := svc.History(sessionID)
	if err != nil {
		t.Fatalf("History(%q) error = %v", sessionID, err)
	}
	return turns
}

func TestService_LeavePolicyScenario(t *testing.T) {
	ctx := context.Background()
	svc, llm := newTestService(t)

	doc := "Leave policy: employees get 20 days per year."
	if _, err := svc.Ingest(ctx, models.DocumentsFromTexts([]string{doc}), ModeAppend); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	first, err := svc.Ask(ctx, "hr-session", "How many leave days do employees get?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(first.Answer, "20 days") {
		t.Errorf("Answer does not reference 20 days: %q", first.Answer)
	}
	found := false
	for _, s := range first.Sources {
		if s.PageContent == doc {
			found = true
		}
	}
	if !found {
		t.Errorf("Sources do not contain the ingested chunk: %+v", first.Sources)
	}

	if _, err := svc.Ask(ctx, "hr-session", "And for contractors?"); err != nil {
		t.Fatalf("follow-up Ask() error = %v", err)
	}

	req := llm.lastRequest()
	if req.Question != "And for contractors?" {
		t.Errorf("Follow-up question = %q", req.Question)
	}
	if len(req.History) != 2 {
		t.Fatalf("Follow-up history has %d turns, want 2", len(req.History))
	}
	if req.History[0].Role != models.RoleUser || req.History[0].Text != "How many leave days do employees get?" {
		t.Errorf("History[0] = %+v", req.History[0])
	}
	if req.History[1].Role != models.RoleAssistant || req.History[1].Text != first.Answer {
		t.Errorf("History[1] = %+v", req.History[1])
	}

	if got := len(mustHistory(t, svc, "hr-session")); got != 4 {
		t.Errorf("Session should hold 4 turns, got %d", got)
	}
}

func TestService_FreshIndexAnswers(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Ask(context.Background(), "", "anything indexed?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Expected no sources, got %d", len(result.Sources))
	}
	if len(mustHistory(t, svc, DefaultSessionID)) != 2 {
		t.Error("Empty session id should record into the default session")
	}
}

func TestService_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	svc, llm := newTestService(t)

	if _, err := svc.Ask(ctx, "A", "question in A"); err != nil {
		t.Fatalf("Ask(A) error = %v", err)
	}
	if _, err := svc.Ask(ctx, "B", "question in B"); err != nil {
		t.Fatalf("Ask(B) error = %v", err)
	}

	if len(llm.lastRequest().History) != 0 {
		t.Error("Session B saw session A's history")
	}
	if len(mustHistory(t, svc, "A")) != 2 || len(mustHistory(t, svc, "B")) != 2 {
		t.Errorf("Unexpected history sizes A=%d B=%d", len(mustHistory(t, svc, "A")), len(mustHistory(t, svc, "B")))
	}
}

func TestService_FailedAskLeavesMemory(t *testing.T) {
	ctx := context.Background()
	svc, llm := newTestService(t)
	llm.respond = func(context.Context, models.GenerationRequest) (string, error) {
		return "", errFake
	}

	_, err := svc.Ask(ctx, "s", "will fail")
	if KindOf(err) != KindAnswerGeneration {
		t.Errorf("Expected answer generation error, got %v", err)
	}
	if len(mustHistory(t, svc, "s")) != 0 {
		t.Error("Failed ask should not record turns")
	}

	if _, err := svc.Ask(ctx, "s", ""); KindOf(err) != KindInvalidRequest {
		t.Errorf("Expected invalid request for empty question, got %v", err)
	}
}

func TestService_ConcurrentAsksOnOneSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ask(ctx, "busy", "same question"); err != nil {
				t.Errorf("Ask() error = %v", err)
			}
		}()
	}
	wg.Wait()

	history := mustHistory(t, svc, "busy")
	if len(history) != 20 {
		t.Fatalf("Expected 20 turns, got %d", len(history))
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != models.RoleUser || history[i+1].Role != models.RoleAssistant {
			t.Fatalf("Turns interleaved at %d: %s then %s", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestService_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.Ingest(ctx, models.DocumentsFromTexts([]string{"one", "two"}), ModeRebuild); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if _, err := svc.Ask(ctx, "s", "hello"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	stats := svc.Stats()
	if stats.Chunks != 2 || stats.Dimension != 27 || stats.Model != "fake-embed-v1" || stats.Sessions != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	if err := svc.ClearSession("s"); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if len(svc.Sessions()) != 0 {
		t.Errorf("Expected no sessions after clear, got %v", svc.Sessions())
	}
}

func TestService_EmptyQuestionDoesNotTouchSessions(t *testing.T) {
	svc, llm := newTestService(t)

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := svc.Ask(context.Background(), "new-session", q); KindOf(err) != KindInvalidRequest {
			t.Errorf("Ask(%q) error = %v, want invalid request", q, err)
		}
	}
	if sessions := svc.Sessions(); len(sessions) != 0 {
		t.Errorf("Rejected asks registered sessions: %v", sessions)
	}
	if llm.requestCount() != 0 {
		t.Errorf("Language model called %d times for rejected asks", llm.requestCount())
	}
}

func TestService_HistoryLookupKeepsOtherSessions(t *testing.T) {
	ctx := context.Background()
	log := newMemTurnLog()
	svc, _ := newTestServiceWithMemory(t, MemoryConfig{MaxSessions: 1, Log: log})

	if _, err := svc.Ask(ctx, "real", "hello"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if turns := mustHistory(t, svc, "unknown-lookup"); len(turns) != 0 {
		t.Errorf("Unknown session returned turns: %+v", turns)
	}

	if sessions := svc.Sessions(); len(sessions) != 1 || sessions[0] != "real" {
		t.Errorf("History lookup registered a session: %v", sessions)
	}
	if log.count("real") != 2 {
		t.Errorf("Logged turns of the real session = %d, want 2", log.count("real"))
	}
	if turns := mustHistory(t, svc, "real"); len(turns) != 2 {
		t.Errorf("History(real) = %d turns, want 2", len(turns))
	}
}

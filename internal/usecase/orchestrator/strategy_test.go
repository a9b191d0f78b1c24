package orchestrator

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/atlas-cloud/ragdex/internal/domain"
	"github.com/atlas-cloud/ragdex/internal/domain/appconfig"
	llm "github.com/atlas-cloud/ragdex/internal/transport/openai"
)

func TestFunctionStrategy_SearchCall(t *testing.T) {
	cfg := appconfig.Default()
	chat := &mockChat{
		completeFn: func(_ context.Context, _ []openai.ChatCompletionMessage, defs []openai.Tool) (llm.ChatResult, error) {
			if len(defs) != 3 {
				t.Fatalf("expected 3 function definitions, got %d", len(defs))
			}
			return llm.ChatResult{
				ToolCalls: []openai.ToolCall{{
					ID:   "call-1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "search_documents",
						Arguments: `{"question": "what is the refund policy?"}`,
					},
				}},
				PromptTokens: 7,
			}, nil
		},
	}
	qa := &mockQA{
		answerFn: func(_ context.Context, question string, _ []domain.HistoryPair, _ appconfig.Prompts) (domain.Answer, error) {
			return domain.Answer{Question: question, Answer: "30 days [doc1]", PromptTokens: 11}, nil
		},
	}

	s := newFunctionStrategy(qa, &mockText{}, &mockSafety{}, chat, zap.NewNop())
	result, err := s.Run(context.Background(), "refund policy?", nil, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Intent != "what is the refund policy?" {
		t.Fatalf("intent = %q", result.Intent)
	}
	if result.Answer.Answer != "30 days [doc1]" {
		t.Fatalf("answer = %q", result.Answer.Answer)
	}
	if result.Answer.PromptTokens != 18 {
		t.Fatalf("selection tokens not folded into the answer: %d", result.Answer.PromptTokens)
	}
}

func TestFunctionStrategy_DirectReply(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{Content: "Hello!"}, nil
		},
	}
	qa := &mockQA{}
	s := newFunctionStrategy(qa, &mockText{}, &mockSafety{}, chat, zap.NewNop())

	result, err := s.Run(context.Background(), "hi", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if qa.calls != 0 {
		t.Fatal("direct reply must not hit retrieval")
	}
	if result.Answer.Answer != "Hello!" || len(result.Answer.SourceDocuments) != 0 {
		t.Fatalf("unexpected result %+v", result.Answer)
	}
}

func TestFunctionStrategy_HopGuard(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{
				ToolCalls: []openai.ToolCall{{
					ID:       "loop",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "check_content_safety", Arguments: `{"text": "x"}`},
				}},
			}, nil
		},
	}
	s := newFunctionStrategy(&mockQA{}, &mockText{}, &mockSafety{}, chat, zap.NewNop())

	_, err := s.Run(context.Background(), "q", nil, appconfig.Default())
	if err == nil {
		t.Fatal("expected hop guard to fire")
	}
	if chat.calls != defaultMaxToolHops {
		t.Fatalf("expected %d hops, got %d", defaultMaxToolHops, chat.calls)
	}
}

func TestStrategySet_WithMaxToolHops(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{
				ToolCalls: []openai.ToolCall{{
					ID:       "loop",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "check_content_safety", Arguments: `{"text": "x"}`},
				}},
			}, nil
		},
	}
	set := NewStrategySet(&mockQA{}, &mockText{}, &mockSafety{}, chat, zap.NewNop()).
		WithMaxToolHops(2)

	s, err := set.For(appconfig.StrategyOpenAIFunction)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if _, err := s.Run(context.Background(), "q", nil, appconfig.Default()); err == nil {
		t.Fatal("expected hop guard to fire")
	}
	if chat.calls != 2 {
		t.Fatalf("expected 2 hops with configured bound, got %d", chat.calls)
	}
}

func TestAgentStrategy_SearchAction(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{Content: "Thought: needs the documents\n" +
				"Action: search_documents\n" +
				"Action Input: what are the opening hours?"}, nil
		},
	}
	qa := &mockQA{
		answerFn: func(_ context.Context, question string, _ []domain.HistoryPair, _ appconfig.Prompts) (domain.Answer, error) {
			return domain.Answer{Question: question, Answer: "9 to 5 [doc1]"}, nil
		},
	}
	s := newAgentStrategy(qa, &mockText{}, chat, zap.NewNop())

	result, err := s.Run(context.Background(), "when are you open?", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Intent != "what are the opening hours?" {
		t.Fatalf("intent = %q", result.Intent)
	}
	if result.Answer.Answer != "9 to 5 [doc1]" {
		t.Fatalf("answer = %q", result.Answer.Answer)
	}
}

func TestAgentStrategy_FinalAnswer(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{Content: "Thought: no tool needed\nFinal Answer: Hello!"}, nil
		},
	}
	qa := &mockQA{}
	s := newAgentStrategy(qa, &mockText{}, chat, zap.NewNop())

	result, err := s.Run(context.Background(), "hi", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if qa.calls != 0 {
		t.Fatal("final answer must not hit retrieval")
	}
	if result.Answer.Answer != "Hello!" {
		t.Fatalf("answer = %q", result.Answer.Answer)
	}
}

func TestAgentStrategy_LenientParse(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{Content: "Just a plain reply."}, nil
		},
	}
	s := newAgentStrategy(&mockQA{}, &mockText{}, chat, zap.NewNop())

	result, err := s.Run(context.Background(), "hi", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer.Answer != "Just a plain reply." {
		t.Fatalf("answer = %q", result.Answer.Answer)
	}
}

func TestPluginStrategy_TextProcess(t *testing.T) {
	chat := &mockChat{
		completeFn: func(context.Context, []openai.ChatCompletionMessage, []openai.Tool) (llm.ChatResult, error) {
			return llm.ChatResult{
				ToolCalls: []openai.ToolCall{{
					ID:   "call-1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      "text_process",
						Arguments: `{"text": "long text", "operation": "summarize"}`,
					},
				}},
			}, nil
		},
	}
	text := &mockText{
		processFn: func(_ context.Context, textIn, operation string) (domain.Answer, error) {
			if textIn != "long text" || operation != "summarize" {
				t.Fatalf("unexpected args %q %q", textIn, operation)
			}
			return domain.Answer{Answer: "short"}, nil
		},
	}
	s := newPluginStrategy(&mockQA{}, text, &mockSafety{}, chat, zap.NewNop())

	result, err := s.Run(context.Background(), "summarize this", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer.Answer != "short" || result.Intent != "summarize" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFlowStrategy_AlwaysRetrieves(t *testing.T) {
	qa := &mockQA{
		answerFn: func(_ context.Context, question string, _ []domain.HistoryPair, _ appconfig.Prompts) (domain.Answer, error) {
			return domain.Answer{Question: "standalone " + question, Answer: "ok"}, nil
		},
	}
	s := newFlowStrategy(qa, zap.NewNop())

	result, err := s.Run(context.Background(), "hi", nil, appconfig.Default())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if qa.calls != 1 {
		t.Fatal("flow strategy must always go through QA")
	}
	if result.Intent != "standalone hi" {
		t.Fatalf("intent = %q", result.Intent)
	}
}

func TestStrategySet_AllRegistered(t *testing.T) {
	set := NewStrategySet(&mockQA{}, &mockText{}, &mockSafety{}, &mockChat{}, zap.NewNop())
	for _, name := range []appconfig.Strategy{
		appconfig.StrategyOpenAIFunction,
		appconfig.StrategyLangChain,
		appconfig.StrategySemanticKernel,
		appconfig.StrategyPromptFlow,
	} {
		if _, err := set.For(name); err != nil {
			t.Fatalf("strategy %s not registered: %v", name, err)
		}
	}
	if _, err := set.For(appconfig.Strategy("nope")); !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

// Package appconfig holds the runtime configuration document: active prompts,
// orchestration strategy, and per-document-type processor mappings. The
// document is persisted as a single JSON blob and consumed as an immutable
// snapshot per request.
package appconfig

import (
	"fmt"
	"strings"
)

// Strategy selects how a user turn is routed through tools.
type Strategy string

const (
	// StrategyOpenAIFunction lets the model pick tools via function calling.
	StrategyOpenAIFunction Strategy = "openai_function"
	// StrategyLangChain is a tool-using agent loop.
	StrategyLangChain Strategy = "langchain"
	// StrategySemanticKernel is a plugin-based equivalent.
	StrategySemanticKernel Strategy = "semantic_kernel"
	// StrategyPromptFlow is a fixed retrieve-then-answer DAG.
	StrategyPromptFlow Strategy = "prompt_flow"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyOpenAIFunction, StrategyLangChain, StrategySemanticKernel, StrategyPromptFlow:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("orchestration strategy %q", s)
}

// Prompts are the active prompt templates.
type Prompts struct {
	CondenseQuestion         string `json:"condense_question_prompt"`
	AnsweringSystem          string `json:"answering_system_prompt"`
	AnsweringUser            string `json:"answering_user_prompt"`
	PostAnswering            string `json:"post_answering_prompt"`
	ContentSafetyReplacement string `json:"content_safety_replacement"`
	PostAnsweringRefusal     string `json:"post_answering_refusal"`
}

// Chunking configures the chunker for one document type.
type Chunking struct {
	Strategy string `json:"strategy"`
	Size     int    `json:"size"`
	Overlap  int    `json:"overlap"`
}

// Loading configures the loader for one document type.
type Loading struct {
	Strategy string `json:"strategy"`
}

// DocumentProcessor maps a document type to its chunking and loading strategies.
type DocumentProcessor struct {
	DocumentType string   `json:"document_type"`
	Chunking     Chunking `json:"chunking"`
	Loading      Loading  `json:"loading"`
}

// Orchestrator holds strategy selection.
type Orchestrator struct {
	Strategy Strategy `json:"strategy"`
}

// Configuration is the single active runtime configuration document.
type Configuration struct {
	Prompts                  Prompts             `json:"prompts"`
	Orchestrator             Orchestrator        `json:"orchestrator"`
	DocumentProcessors       []DocumentProcessor `json:"document_processors"`
	IntegratedVectorization  bool                `json:"integrated_vectorization"`
	EnablePostAnsweringCheck bool                `json:"enable_post_answering_prompt"`
	EnableContentSafety      bool                `json:"enable_content_safety"`
}

// ProcessorFor returns the processor for a document type (by file extension,
// lowercased, without the dot). Second return is false when no mapping exists.
func (c Configuration) ProcessorFor(documentType string) (DocumentProcessor, bool) {
	dt := strings.ToLower(strings.TrimPrefix(documentType, "."))
	for _, p := range c.DocumentProcessors {
		if p.DocumentType == dt {
			return p, true
		}
	}
	return DocumentProcessor{}, false
}

// Validate checks the configuration shape before it is persisted.
func (c Configuration) Validate() error {
	if _, err := ParseStrategy(string(c.Orchestrator.Strategy)); err != nil {
		return fmt.Errorf("invalid %w", err)
	}
	for _, p := range c.DocumentProcessors {
		if p.DocumentType == "" {
			return fmt.Errorf("document processor with empty document_type")
		}
		if p.Chunking.Size <= 0 {
			return fmt.Errorf("processor %s: chunking size must be positive", p.DocumentType)
		}
		if p.Chunking.Overlap < 0 || p.Chunking.Overlap >= p.Chunking.Size {
			return fmt.Errorf("processor %s: overlap must be in [0, size)", p.DocumentType)
		}
	}
	return nil
}

// Default returns the built-in configuration used when no document is persisted.
func Default() Configuration {
	chunk := func(strategy string) Chunking {
		return Chunking{Strategy: strategy, Size: 500, Overlap: 100}
	}
	return Configuration{
		Prompts: Prompts{
			CondenseQuestion: "Given the following conversation and a follow up question, " +
				"rephrase the follow up question to be a standalone question.\n\n" +
				"Chat history:\n{chat_history}\n\nFollow up question: {question}\n" +
				"Standalone question:",
			AnsweringSystem: "You are an assistant that answers questions using only the " +
				"provided sources. Cite every fact with its source marker, e.g. [doc1]. " +
				"If the sources do not contain the answer, reply that the requested " +
				"information is not available in the retrieved data.",
			AnsweringUser: "Sources:\n{sources}\n\nQuestion: {question}",
			PostAnswering: "Given the sources below, is the answer fully supported by them? " +
				"Reply with exactly True or False.\n\nSources:\n{sources}\n\n" +
				"Question: {question}\n\nAnswer: {answer}",
			ContentSafetyReplacement: "The question and answer exceed the content safety " +
				"guidelines and cannot be answered.",
			PostAnsweringRefusal: "I cannot answer this question from the information " +
				"available to me.",
		},
		Orchestrator: Orchestrator{Strategy: StrategyOpenAIFunction},
		DocumentProcessors: []DocumentProcessor{
			{DocumentType: "pdf", Chunking: chunk("layout"), Loading: Loading{Strategy: "layout"}},
			{DocumentType: "txt", Chunking: chunk("paragraph"), Loading: Loading{Strategy: "web"}},
			{DocumentType: "md", Chunking: chunk("paragraph"), Loading: Loading{Strategy: "web"}},
			{DocumentType: "html", Chunking: chunk("fixed"), Loading: Loading{Strategy: "web"}},
			{DocumentType: "htm", Chunking: chunk("fixed"), Loading: Loading{Strategy: "web"}},
			{DocumentType: "docx", Chunking: chunk("fixed"), Loading: Loading{Strategy: "docx"}},
			{DocumentType: "jpg", Chunking: chunk("layout"), Loading: Loading{Strategy: "read"}},
			{DocumentType: "png", Chunking: chunk("layout"), Loading: Loading{Strategy: "read"}},
			{DocumentType: "url", Chunking: chunk("fixed"), Loading: Loading{Strategy: "url"}},
		},
	}
}

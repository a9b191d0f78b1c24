package domain

import "encoding/json"

// Role of a conversation turn.
type Role string

const (
	// RoleUser is the end user.
	RoleUser Role = "user"
	// RoleAssistant is the model.
	RoleAssistant Role = "assistant"
	// RoleTool carries the citations payload alongside an assistant turn.
	RoleTool Role = "tool"
)

// ConversationTurn is a single message in the conversation envelope.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	EndTurn bool   `json:"end_turn"`
}

// ToolPayload is the JSON content of a tool turn.
type ToolPayload struct {
	Citations []SourceDocument `json:"citations"`
	Intent    string           `json:"intent"`
}

// NewToolTurn serializes the citations payload into a tool turn.
func NewToolTurn(citations []SourceDocument, intent string) ConversationTurn {
	if citations == nil {
		citations = []SourceDocument{}
	}
	data, _ := json.Marshal(ToolPayload{Citations: citations, Intent: intent})
	return ConversationTurn{Role: RoleTool, Content: string(data), EndTurn: false}
}

// NewAssistantTurn creates a terminal assistant turn.
func NewAssistantTurn(content string) ConversationTurn {
	return ConversationTurn{Role: RoleAssistant, Content: content, EndTurn: true}
}

// HistoryPair is one completed (question, answer) exchange from prior turns.
type HistoryPair struct {
	Question string
	Answer   string
}

// PairHistory folds an alternating user/assistant message list into
// (question, answer) pairs, dropping a trailing unanswered question.
// Tool turns are skipped.
func PairHistory(turns []ConversationTurn) []HistoryPair {
	var pairs []HistoryPair
	var pending *string
	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			q := t.Content
			pending = &q
		case RoleAssistant:
			if pending != nil {
				pairs = append(pairs, HistoryPair{Question: *pending, Answer: t.Content})
				pending = nil
			}
		case RoleTool:
			// citations payload, not part of the dialogue
		}
	}
	return pairs
}

// Answer is the result of one question-answering pass.
type Answer struct {
	Question         string
	Answer           string
	SourceDocuments  []SourceDocument
	PromptTokens     int
	CompletionTokens int
}

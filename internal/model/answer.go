package model

// DocumentReference identifies one source that contributed to an answer.
type DocumentReference struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Answer is the response envelope returned for one question. This is the
// sole externally observable contract of the pipeline.
type Answer struct {
	Text               string              `json:"answer"`
	Sources            []DocumentReference `json:"sources"`
	Confidence         float64             `json:"confidence"`
	SearchResultsCount int                 `json:"search_results_count"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one caller-supplied turn of chat history.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastTurns returns the most recent n exchanges (2n messages), oldest
// first, preserving the original order.
func LastTurns(history []ConversationMessage, n int) []ConversationMessage {
	if n <= 0 {
		return nil
	}
	keep := n * 2
	if len(history) <= keep {
		return history
	}
	return history[len(history)-keep:]
}

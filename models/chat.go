package models

// ChatMessage is a single message in a chat exchange
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatResult is a completed model response
type ChatResult struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// StreamChunk is one increment of a streamed model response
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

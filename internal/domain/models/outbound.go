package models

// OutboundMessageRequest represents requests to push a message to a chat via the API.
type OutboundMessageRequest struct {
	ChatID  int64  `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Reply is a rendered bot answer: text plus an optional inline keyboard.
type Reply struct {
	Text     string
	Keyboard *InlineKeyboardMarkup
}

package models

// Reaction is an emoji reaction attached to one message. Reactions are
// independent entities: they are merged into the UI view by message id, not
// by message identity, so a reaction may arrive before its message.
type Reaction struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

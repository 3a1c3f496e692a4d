package common

import (
	"github.com/google/uuid"
)

// NewPostID generates a unique post record ID with the "post_" prefix
// Format: post_<uuid>
func NewPostID() string {
	return "post_" + uuid.New().String()
}

// NewTradeID generates a unique trade record ID with the "trade_" prefix
// Format: trade_<uuid>
func NewTradeID() string {
	return "trade_" + uuid.New().String()
}

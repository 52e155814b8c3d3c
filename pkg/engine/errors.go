package engine

import "errors"

// Engine error taxonomy. Every failure is local to the triggering call:
// none of these leave registry, subscription, or counter state mutated.
var (
	// ErrUnauthorized rejects an operation with no verified sender identity.
	ErrUnauthorized = errors.New("sender not authenticated")

	// Validation failures: rejected to the caller, nothing persisted or
	// broadcast.
	ErrEmptyContent     = errors.New("message content is empty")
	ErrContentTooLong   = errors.New("message content exceeds maximum length")
	ErrNotParticipant   = errors.New("sender is not a conversation participant")
	ErrSelfConversation = errors.New("conversation with self is not allowed")

	// ErrConversationNotFound rejects sends and read-marks against unknown
	// conversations.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrInvalidChannel rejects malformed channel ids.
	ErrInvalidChannel = errors.New("invalid channel id")
)

// MaxContentLength bounds message content, counted in runes after trimming.
const MaxContentLength = 1000

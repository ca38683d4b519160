package history

import "errors"

// Sentinel errors for store operations.
var (
	ErrEmptyConversationID = errors.New("conversation id is empty")
	ErrLoadFailed          = errors.New("load failed")
	ErrSaveFailed          = errors.New("save failed")
	ErrUnknownDriver       = errors.New("unknown history driver")
)

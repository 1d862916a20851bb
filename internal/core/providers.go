package core

import "context"

// Request is everything an invocation strategy needs to build one model
// call. History already ends with the new user message.
type Request struct {
	System  string
	History []Message
	Message string
}

// Strategy shapes a Request into a backend call and extracts the raw reply
// text. Implementations are selected once at construction.
type Strategy interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

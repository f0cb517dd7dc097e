package ports

import "context"

// Logger is the structured logger every component receives at construction.
// Fields are merged left to right; implementations live in adapters/logger.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err alongside msg; err must not be nil.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

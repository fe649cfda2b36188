package port

// TokenCounter maps text to a token count for one model.
type TokenCounter interface {
	Count(text string) int

	// Model returns the model identifier the counter is bound to.
	Model() string
}

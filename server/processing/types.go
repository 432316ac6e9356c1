package processing

// Response is a raw-text reply after formatting.
type Response struct {
	// Content is the processed response content
	Content string `json:"content"`

	// Truncated reports that MaxLength cut the reply
	Truncated bool `json:"truncated,omitempty"`
}

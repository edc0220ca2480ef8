package search

// Result is a single search hit returned to the caller.
type Result struct {
	ConversationID string `json:"conversationId"`
	Conversation   string `json:"conversation"`
	NodeID         string `json:"nodeId"`
	Role           string `json:"role"`
	Snippet        string `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text                 string
	FilterConversationID string // empty = all conversations
	FilterRole           string // empty = all roles
	Limit                int
	Offset               int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// MessageRecord is the data we index for one message node.
type MessageRecord struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Conversation   string `json:"conversation"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	UpdatedAt      int64  `json:"updatedAt"`
}

package llm

// Request shape for models/{model}:generateContent.
type providerPart struct {
	Text string `json:"text"`
}

type providerContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []providerPart `json:"parts"`
}

type providerGenerateRequest struct {
	Contents []providerContent `json:"contents"`
}

type providerCandidate struct {
	Content      providerContent `json:"content"`
	FinishReason string          `json:"finishReason,omitempty"`
}

type providerUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type providerGenerateResponse struct {
	Candidates    []providerCandidate `json:"candidates"`
	UsageMetadata *providerUsage      `json:"usageMetadata,omitempty"`
}

type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

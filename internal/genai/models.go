package genai

// Wire types for the generateContent endpoint. Requests use the snake_case
// field names; responses are read in camelCase with snake_case accepted.

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type requestPart struct {
	InlineData *inlineData `json:"inline_data,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type generationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []requestContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type responseBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type responsePart struct {
	Text            string        `json:"text,omitempty"`
	InlineData      *responseBlob `json:"inlineData,omitempty"`
	InlineDataSnake *responseBlob `json:"inline_data,omitempty"`
}

func (p responsePart) blob() *responseBlob {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

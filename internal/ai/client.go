// Package ai wraps the Gemini generateContent REST endpoint for
// conversation summaries, smart reply suggestions, and voice note
// transcription. Every call degrades to a static fallback so chat
// features keep working when the upstream model is unavailable.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	generateContentURL = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"

	// Fallbacks returned when the model cannot be reached or replies
	// with something unusable.
	FallbackEmptySummary  = "Not enough message history to summarize."
	FallbackSummaryError  = "Failed to generate summary due to an API error."
	FallbackTranscription = "Transcription unavailable."
)

// FallbackReplies are suggested when reply generation fails.
var FallbackReplies = []string{"Got it!", "Thanks!", "Talk soon!"}

// HistoryEntry is one line of conversation context fed to the model.
type HistoryEntry struct {
	Sender  string
	Content string
}

// Client calls the Gemini API. A zero APIKey disables remote calls and
// every method returns its fallback immediately.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// request/response shapes for the generateContent endpoint.

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Summarize produces a short bullet summary of the conversation so far.
func (c *Client) Summarize(ctx context.Context, history []HistoryEntry) string {
	if len(history) == 0 {
		return FallbackEmptySummary
	}
	if !c.Enabled() {
		return FallbackSummaryError
	}

	prompt := fmt.Sprintf(
		"Summarize the following conversation in at most 3 short bullet points. "+
			"Be concise and factual. Do not add commentary.\n\n%s",
		formatHistory(history),
	)

	text, err := c.generate(ctx, []generatePart{{Text: prompt}})
	if err != nil {
		log.Printf("AI summary request failed: %v", err)
		return FallbackSummaryError
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackSummaryError
	}
	return text
}

// SmartReplies suggests up to three short replies the user could send
// next. Only the most recent lines of history are sent to the model.
func (c *Client) SmartReplies(ctx context.Context, history []HistoryEntry) []string {
	if !c.Enabled() || len(history) == 0 {
		return FallbackReplies
	}

	if len(history) > 8 {
		history = history[len(history)-8:]
	}

	prompt := fmt.Sprintf(
		"Given this conversation, suggest 3 short replies the last recipient could send. "+
			"Respond with ONLY a JSON array of 3 strings, nothing else.\n\n%s",
		formatHistory(history),
	)

	text, err := c.generate(ctx, []generatePart{{Text: prompt}})
	if err != nil {
		log.Printf("AI smart reply request failed: %v", err)
		return FallbackReplies
	}

	replies := parseReplyArray(text)
	if len(replies) == 0 {
		return FallbackReplies
	}
	return replies
}

// TranscribeURL downloads a stored voice note and transcribes it.
func (c *Client) TranscribeURL(ctx context.Context, mediaURL string) string {
	if !c.Enabled() || mediaURL == "" {
		return FallbackTranscription
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return FallbackTranscription
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("AI transcription media fetch failed: %v", err)
		return FallbackTranscription
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("AI transcription media fetch returned status %d", resp.StatusCode)
		return FallbackTranscription
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return FallbackTranscription
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = "audio/webm"
	}
	return c.Transcribe(ctx, mimeType, base64.StdEncoding.EncodeToString(audio))
}

// Transcribe converts a base64-encoded voice note into text.
func (c *Client) Transcribe(ctx context.Context, mimeType, base64Audio string) string {
	if !c.Enabled() || base64Audio == "" {
		return FallbackTranscription
	}

	parts := []generatePart{
		{Text: "Transcribe this audio message verbatim. Respond with only the transcription text."},
		{InlineData: &inlineData{MimeType: mimeType, Data: base64Audio}},
	}

	text, err := c.generate(ctx, parts)
	if err != nil {
		log.Printf("AI transcription request failed: %v", err)
		return FallbackTranscription
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return FallbackTranscription
	}
	return text
}

func (c *Client) generate(ctx context.Context, parts []generatePart) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{{Parts: parts}},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf(generateContentURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func formatHistory(history []HistoryEntry) string {
	var sb strings.Builder
	for _, entry := range history {
		sb.WriteString(entry.Sender)
		sb.WriteString(": ")
		sb.WriteString(entry.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

var replyArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// parseReplyArray pulls a JSON string array out of a model response
// that may be wrapped in markdown fences or prose.
func parseReplyArray(text string) []string {
	match := replyArrayPattern.FindString(text)
	if match == "" {
		return nil
	}
	var replies []string
	if err := json.Unmarshal([]byte(match), &replies); err != nil {
		return nil
	}
	cleaned := make([]string, 0, 3)
	for _, reply := range replies {
		reply = strings.TrimSpace(reply)
		if reply == "" {
			continue
		}
		cleaned = append(cleaned, reply)
		if len(cleaned) == 3 {
			break
		}
	}
	return cleaned
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

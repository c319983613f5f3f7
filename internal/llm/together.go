package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Together talks to an OpenAI compatible /chat/completions endpoint.
type Together struct {
	token      string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewTogether(token, baseURL, model string, timeout time.Duration) *Together {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Together{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Together) do(ctx context.Context, endpoint string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("together: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Complete returns the trimmed content of the first choice.
func (c *Together) Complete(ctx context.Context, msgs []Message) (string, error) {
	reqBody := map[string]any{
		"model":       c.model,
		"messages":    msgs,
		"max_tokens":  60,
		"temperature": 0.9,
	}
	var respBody struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.do(ctx, "/chat/completions", reqBody, &respBody); err != nil {
		return "", err
	}
	if len(respBody.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(respBody.Choices[0].Message.Content), nil
}

// Package bank talks to the question-bank backend: it uploads listening
// audio, builds the creation payload from a question set and publishes it.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// AudioExtensions are the audio file types the backend accepts.
var AudioExtensions = []string{".mp3", ".wav", ".m4a"}

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("question bank api error (status %d): %s", e.Status, e.Body)
}

// Client calls the question-bank backend.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a backend client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Created is the backend's answer to a successful creation.
type Created struct {
	ID string
}

type createdResponse struct {
	ID   flexibleID `json:"id"`
	OID  flexibleID `json:"_id"`
	Data *struct {
		ID  flexibleID `json:"id"`
		OID flexibleID `json:"_id"`
	} `json:"data"`
}

// flexibleID accepts ids encoded as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	*f = flexibleID(strings.Trim(string(data), `"`))
	return nil
}

func (r createdResponse) id() string {
	for _, id := range []flexibleID{r.ID, r.OID} {
		if id != "" {
			return string(id)
		}
	}
	if r.Data != nil {
		if r.Data.ID != "" {
			return string(r.Data.ID)
		}
		return string(r.Data.OID)
	}
	return ""
}

// CreateQuestionBank posts a question set to the backend.
func (c *Client) CreateQuestionBank(ctx context.Context, token string, p *Payload) (Created, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Created{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/question-bank", bytes.NewReader(body))
	if err != nil {
		return Created{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setToken(req, token)

	respBody, err := c.do(req)
	if err != nil {
		return Created{}, err
	}

	var created createdResponse
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &created); err != nil {
			return Created{}, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return Created{ID: created.id()}, nil
}

// UploadAudio sends one audio file and returns the URL the backend stored it
// under.
func (c *Client) UploadAudio(ctx context.Context, token, filename string, r io.Reader) (string, error) {
	if !IsAudioFile(filename) {
		return "", fmt.Errorf("unsupported audio file %q: want one of %s", filename, strings.Join(AudioExtensions, ", "))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/audio", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	setToken(req, token)

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var uploaded struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(respBody, &uploaded); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if uploaded.URL == "" {
		return "", fmt.Errorf("audio upload returned no url")
	}
	return uploaded.URL, nil
}

// IsAudioFile reports whether filename has an accepted audio extension.
func IsAudioFile(filename string) bool {
	return slices.Contains(AudioExtensions, strings.ToLower(filepath.Ext(filename)))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func setToken(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

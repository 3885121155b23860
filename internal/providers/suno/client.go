// Package suno adapts the external asynchronous music-generation API onto
// the internal four-state task model. Provider-reported failures and
// transport failures are distinct error classes: the first is definitive,
// the second is retried by the worker's poll loop.
package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("suno: api key is required")

// TransportError wraps network and HTTP-level failures. The poll loop treats
// these as retryable on the next tick.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "suno: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a retryable transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Options configures the client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	CallbackURL    string
	HTTPClient     *http.Client
	Logger         *zerolog.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the generation API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	callbackURL string
	httpClient  *http.Client
	logger      *zerolog.Logger
}

// SubmitRequest carries the generation inputs.
type SubmitRequest struct {
	Prompt       string
	Style        string
	Title        string
	Instrumental bool
	VocalGender  string
	Model        string
}

// TaskState is the normalized result of one status poll.
type TaskState struct {
	Status       domain.TaskStatus
	Progress     int
	AudioURL     string
	DurationSec  int
	ErrorMessage string
}

type submitPayload struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	VocalGender  string `json:"vocalGender,omitempty"`
	CallBackURL  string `json:"callBackUrl,omitempty"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	TaskID string `json:"taskId"`
}

type recordData struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Response     struct {
		SunoData []struct {
			AudioURL       string  `json:"audioUrl"`
			SourceAudioURL string  `json:"sourceAudioUrl"`
			Duration       float64 `json:"duration"`
		} `json:"sunoData"`
	} `json:"response"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
// The request timeout stays below the worker's poll cadence ceiling so one
// slow call cannot stall the loop.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.sunoapi.org/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "V4_5"
	}
	var logger *zerolog.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     baseURL,
		model:       model,
		callbackURL: strings.TrimSpace(opts.CallbackURL),
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit starts a generation task and returns the external task id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("suno: prompt is required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	payload := submitPayload{
		Prompt:       prompt,
		Style:        strings.TrimSpace(req.Style),
		Title:        strings.TrimSpace(req.Title),
		Instrumental: req.Instrumental,
		Model:        model,
		VocalGender:  req.VocalGender,
		CallBackURL:  c.callbackURL,
	}
	data, err := c.post(ctx, "/generate", payload)
	if err != nil {
		return "", err
	}
	var decoded submitData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("suno: decode submit response: %w", err)
	}
	if decoded.TaskID == "" {
		return "", errors.New("suno: empty task id")
	}
	c.logger.Debug().Str("task_id", decoded.TaskID).Str("model", model).Msg("suno: task submitted")
	return decoded.TaskID, nil
}

// Poll queries the task status and maps the provider code onto the internal
// model. Unrecognized codes map to pending, never silently to completed.
func (c *Client) Poll(ctx context.Context, externalTaskID string) (TaskState, error) {
	data, err := c.get(ctx, "/generate/record-info?taskId="+url.QueryEscape(externalTaskID))
	if err != nil {
		return TaskState{}, err
	}
	var decoded recordData
	if err := json.Unmarshal(data, &decoded); err != nil {
		return TaskState{}, fmt.Errorf("suno: decode record response: %w", err)
	}

	state := TaskState{ErrorMessage: decoded.ErrorMessage}
	for _, item := range decoded.Response.SunoData {
		audio := item.AudioURL
		if audio == "" {
			audio = item.SourceAudioURL
		}
		if audio != "" {
			state.AudioURL = audio
			state.DurationSec = int(item.Duration)
			break
		}
	}

	switch decoded.Status {
	case "PENDING":
		state.Status = domain.TaskPending
		state.Progress = 10
	case "TEXT_SUCCESS":
		state.Status = domain.TaskProcessing
		state.Progress = 40
	case "FIRST_SUCCESS":
		state.Status = domain.TaskProcessing
		state.Progress = 70
	case "SUCCESS":
		state.Status = domain.TaskCompleted
		state.Progress = 100
		if state.AudioURL == "" {
			// A success without an artifact is not a success.
			state.Status = domain.TaskFailed
			state.ErrorMessage = "provider reported success without audio url"
		}
	case "CREATE_TASK_FAILED", "GENERATE_AUDIO_FAILED", "CALLBACK_EXCEPTION", "SENSITIVE_WORD_ERROR":
		state.Status = domain.TaskFailed
		if state.ErrorMessage == "" {
			state.ErrorMessage = decoded.Status
		}
	default:
		c.logger.Warn().Str("task_id", externalTaskID).Str("status", decoded.Status).Msg("suno: unrecognized task status")
		state.Status = domain.TaskPending
		state.Progress = 10
	}
	return state, nil
}

// Download fetches the artifact bytes from the provider URL.
func (c *Client) Download(ctx context.Context, audioURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(audioURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("suno: invalid audio url: %s", audioURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("suno: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &TransportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", &TransportError{Err: fmt.Errorf("download status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &TransportError{Err: err}
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return data, mime, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("suno: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("suno: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("suno: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode >= 500 {
		return nil, &TransportError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("suno: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("suno: decode response: %w", err)
	}
	if env.Code != 200 && env.Code != 0 {
		return nil, fmt.Errorf("suno: %s (code %d)", env.Msg, env.Code)
	}
	return env.Data, nil
}

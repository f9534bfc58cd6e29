// Package judge runs candidate code on a Judge0 CE compatible execution service.
package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/jsat/internal/scoring"
)

// DefaultLanguageID is Judge0's Java (OpenJDK 13) language.
const DefaultLanguageID = 91

// StatusAccepted is the Judge0 status of a run that finished normally.
const StatusAccepted = 3

// ErrNotConfigured is returned by a nil or unconfigured client.
var ErrNotConfigured = errors.New("code execution is not configured")

// Executor runs source code and reports what happened.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// Request is one program to run.
type Request struct {
	SourceCode string
	LanguageID int
	Stdin      string
}

// Status is Judge0's run status.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Result is a finished run with all output already decoded.
type Result struct {
	Status         Status
	Stdout         string
	Stderr         string
	CompileOutput  string
	Message        string
	RuntimeSeconds float64
	MemoryKB       int
}

// Accepted reports whether the program ran without compile or runtime errors.
func (r *Result) Accepted() bool {
	return r.Status.ID == StatusAccepted
}

// Execution converts the run into the scoring engine's input.
func (r *Result) Execution() scoring.ExecutionResult {
	return scoring.ExecutionResult{RuntimeSeconds: r.RuntimeSeconds, Stdout: r.Stdout}
}

// Config holds the connection settings for the execution service.
type Config struct {
	BaseURL string // e.g. https://judge0-ce.p.rapidapi.com
	APIKey  string // RapidAPI key; empty for a self-hosted instance
	Host    string // RapidAPI host header; defaults to the BaseURL host
	Timeout time.Duration
}

// Client talks to a Judge0 CE API.
type Client struct {
	baseURL string
	apiKey  string
	host    string
	http    *http.Client
}

// New creates a client. It returns ErrNotConfigured when no base URL is set.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse judge url: %w", err)
	}
	host := cfg.Host
	if host == "" {
		host = u.Host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		host:    host,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin,omitempty"`
}

type response struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        Status  `json:"status"`
}

// Execute submits code and waits for the run to finish.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.SourceCode) == "" {
		return nil, fmt.Errorf("%w: empty source code", scoring.ErrInvalidInput)
	}
	lang := req.LanguageID
	if lang == 0 {
		lang = DefaultLanguageID
	}
	body, err := json.Marshal(submission{
		SourceCode: base64.StdEncoding.EncodeToString([]byte(req.SourceCode)),
		LanguageID: lang,
		Stdin:      encode(req.Stdin),
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/submissions?base64_encoded=true&wait=true"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-RapidAPI-Key", c.apiKey)
		httpReq.Header.Set("X-RapidAPI-Host", c.host)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("judge request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read judge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("judge returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var jr response
	if err := json.Unmarshal(raw, &jr); err != nil {
		return nil, fmt.Errorf("parse judge response: %w", err)
	}
	res, err := jr.decode()
	if err != nil {
		return nil, err
	}
	slog.Debug("code executed",
		"language_id", lang,
		"status", res.Status.Description,
		"runtime", res.RuntimeSeconds,
		"elapsed", time.Since(start),
	)
	return res, nil
}

func (jr response) decode() (*Result, error) {
	res := &Result{Status: jr.Status}
	fields := []struct {
		src  *string
		dst  *string
		name string
	}{
		{jr.Stdout, &res.Stdout, "stdout"},
		{jr.Stderr, &res.Stderr, "stderr"},
		{jr.CompileOutput, &res.CompileOutput, "compile_output"},
		{jr.Message, &res.Message, "message"},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		s, err := scoring.DecodeOutput(*f.src)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		*f.dst = s
	}
	if jr.Time != nil && *jr.Time != "" {
		t, err := strconv.ParseFloat(*jr.Time, 64)
		if err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", *jr.Time, err)
		}
		res.RuntimeSeconds = t
	}
	if jr.Memory != nil {
		res.MemoryKB = *jr.Memory
	}
	return res, nil
}

func encode(s string) string {
	if s == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

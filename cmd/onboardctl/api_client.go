package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/handler"
	"github.com/spf13/cobra"
)

// requestKeyTTL bounds the lifetime of the key signed for a single request
const requestKeyTTL = 5 * time.Minute

type apiClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func newAPIClient(opts *globalOptions) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(opts.server, "/"),
		secret:     opts.secret,
		httpClient: &http.Client{Timeout: opts.timeout},
	}
}

// call sends one request and pretty-prints the JSON response; non-2xx answers are errors
func (c *apiClient) call(cmd *cobra.Command, method, path string, body interface{}) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	raw, status, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}

	out := raw
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		out = pretty.Bytes()
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(out)))

	if status < 200 || status >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, http.StatusText(status))
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		key, err := handler.IssueOperatorKey(c.secret, "onboardctl", requestKeyTTL)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to sign operator key: %w", err)
		}
		req.Header.Set("X-API-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}

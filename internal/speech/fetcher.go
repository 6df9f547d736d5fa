package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher downloads recording payloads from the telephony transport.
type Fetcher struct {
	username string
	password string
	client   *http.Client
}

// NewFetcher builds a fetcher. Credentials are optional; when present they
// are sent as basic auth, which is what the transport requires for
// recording media URLs.
func NewFetcher(username, password string) *Fetcher {
	return &Fetcher{
		username: username,
		password: password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads the recording. Recording URLs arrive without a media
// extension; .wav is appended when missing.
func (f *Fetcher) Fetch(ctx context.Context, recordingURL string) ([]byte, error) {
	recordingURL = strings.TrimSpace(recordingURL)
	if recordingURL == "" {
		return nil, fmt.Errorf("empty recording url")
	}
	if !strings.HasSuffix(recordingURL, ".wav") && !strings.HasSuffix(recordingURL, ".mp3") {
		recordingURL += ".wav"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download recording: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("recording http status %d", res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return data, nil
}

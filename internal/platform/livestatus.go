package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LiveStatusClient queries the stream-status service for the channels that
// are currently live on a platform.
type LiveStatusClient struct {
	baseURL string
	http    *http.Client
}

func NewLiveStatusClient(baseURL string) *LiveStatusClient {
	return &LiveStatusClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
}

type liveStream struct {
	UserID string `json:"user_id"`
}

type liveStatusResponse struct {
	Data []liveStream `json:"data"`
}

// LiveChannelIDs returns the platform channel ids, out of channelIDs, that
// are live right now. Unknown ids are silently absent from the result.
func (c *LiveStatusClient) LiveChannelIDs(ctx context.Context, channelIDs []string) ([]string, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	u, err := url.Parse(c.baseURL + "/streams")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for _, id := range channelIDs {
		q.Add("user_id", id)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return nil, fmt.Errorf("live status: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out liveStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	live := make([]string, 0, len(out.Data))
	for _, s := range out.Data {
		live = append(live, s.UserID)
	}
	return live, nil
}

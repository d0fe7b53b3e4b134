package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const ReleasesURL = "https://api.github.com/repos/daveymoores/autolog/releases"

// ReleaseChecker reports the latest published CLI version. Results, including
// failures, are cached for ttl so the upstream API is hit at most once per window.
type ReleaseChecker struct {
	client *http.Client
	url    string
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	version string
	fetched time.Time
}

func NewReleaseChecker(url string, ttl time.Duration) *ReleaseChecker {
	return &ReleaseChecker{
		client: &http.Client{Timeout: 3 * time.Second},
		url:    url,
		ttl:    ttl,
		now:    time.Now,
	}
}

type release struct {
	TagName string `json:"tag_name"`
}

// Latest returns the newest release tag without its "v" prefix, or "" when it
// could not be determined. Concurrent callers share a single upstream request,
// which outlives the caller's context so a dropped page load still fills the cache.
func (rc *ReleaseChecker) Latest(ctx context.Context) string {
	if version, ok := rc.cached(); ok {
		return version
	}

	ch := rc.group.DoChan("latest", func() (interface{}, error) {
		if version, ok := rc.cached(); ok {
			return version, nil
		}
		version, err := rc.fetch(context.WithoutCancel(ctx))
		if err != nil {
			version = ""
		}
		rc.mu.Lock()
		rc.version = version
		rc.fetched = rc.now()
		rc.mu.Unlock()
		return version, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return ""
	}
}

func (rc *ReleaseChecker) cached() (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.fetched.IsZero() && rc.now().Sub(rc.fetched) < rc.ttl {
		return rc.version, true
	}
	return "", false
}

func (rc *ReleaseChecker) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := rc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var releases []release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return "", err
	}
	if len(releases) == 0 {
		return "", nil
	}
	return strings.TrimPrefix(releases[0].TagName, "v"), nil
}

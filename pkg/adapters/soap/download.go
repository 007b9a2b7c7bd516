package soap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DownloadAttachment fetches attachment content from the repository
// URL a service response reported. When Config.RepoURL is set, the
// repository base of the reported URL is replaced with it first, for
// deployments where the stock repository location is not reachable
// from the client network.
func (c *Client) DownloadAttachment(ctx context.Context, reportedURL string) ([]byte, error) {
	target := reportedURL
	if c.config.RepoURL != "" {
		rebased, err := rebaseRepoURL(reportedURL, c.config.RepoURL)
		if err != nil {
			return nil, err
		}
		target = rebased
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	user, password := c.config.RepoUser, c.config.RepoPassword
	if user == "" {
		user, password = c.config.User, c.config.Password
	}
	req.SetBasicAuth(user, password)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: server returned %s", target, res.Status)
	}
	return io.ReadAll(res.Body)
}

// rebaseRepoURL swaps the repository base of a reported attachment
// URL. The first path segment of the reported URL names the stock
// repository mount; everything after it is kept.
func rebaseRepoURL(reportedURL, repoBase string) (string, error) {
	parsed, err := url.Parse(reportedURL)
	if err != nil {
		return "", fmt.Errorf("attachment url %q: %w", reportedURL, err)
	}
	rest := strings.TrimPrefix(parsed.Path, "/")
	if _, after, found := strings.Cut(rest, "/"); found {
		rest = after
	} else {
		rest = ""
	}
	return strings.TrimRight(repoBase, "/") + "/" + rest, nil
}

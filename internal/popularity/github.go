package popularity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DefaultSearchURL is the GitHub repository search endpoint.
const DefaultSearchURL = "https://api.github.com/search/repositories"

type ghSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		FullName        string `json:"full_name"`
		StargazersCount *int   `json:"stargazers_count"`
	} `json:"items"`
}

var errRateLimited = errors.New("github API rate limited")

func checkGHStatus(resp *http.Response, what string) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests, http.StatusForbidden:
		return errRateLimited
	default:
		return fmt.Errorf("github API %d for %s", resp.StatusCode, what)
	}
}

// searchURL builds "<base>?q=<name> in:name&sort=stars&order=desc&per_page=1".
func searchURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", name+" in:name")
	q.Set("sort", "stars")
	q.Set("order", "desc")
	q.Set("per_page", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func ghRequest(ctx context.Context, client *http.Client, target, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}

// Package spotify implements app.PlaylistSource against the Spotify
// Web API using the client-credentials flow. Only public playlist
// reads are needed, so no user auth is involved.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"songbingo/internal/app"
	"songbingo/internal/domain"
)

const (
	defaultAccountsURL = "https://accounts.spotify.com"
	defaultAPIURL      = "https://api.spotify.com"
	pageLimit          = 50
)

type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Overridable for tests.
	AccountsURL string
	APIURL      string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		AccountsURL:  defaultAccountsURL,
		APIURL:       defaultAPIURL,
	}
}

// FetchTracks resolves a playlist URL to its full track list, following
// pagination. Non-track items (local files, episodes) are skipped.
func (c *Client) FetchTracks(ctx context.Context, ref string) ([]domain.Track, error) {
	playlistID, err := playlistIDFromRef(ref)
	if err != nil {
		return nil, err
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app.ErrSourceUnavailable, err)
	}

	var tracks []domain.Track
	next := fmt.Sprintf("%s/v1/playlists/%s/tracks?limit=%d", c.APIURL, playlistID, pageLimit)
	for next != "" {
		page, err := c.fetchPage(ctx, token, next)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", app.ErrSourceUnavailable, err)
		}
		for _, item := range page.Items {
			t := item.Track
			if t == nil || t.ID == "" {
				continue
			}
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			tracks = append(tracks, domain.Track{
				ID:         domain.TrackID(t.ID),
				Title:      t.Name,
				Artist:     strings.Join(artists, ", "),
				PreviewURL: t.PreviewURL,
			})
		}
		next = page.Next
	}

	log.Info().Str("module", "adapters.spotify").Str("playlist", playlistID).
		Int("tracks", len(tracks)).Msg("playlist fetched")
	return tracks, nil
}

// playlistIDFromRef extracts the playlist id from an open.spotify.com
// link, or accepts a bare "spotify:<id>" reference.
func playlistIDFromRef(ref string) (string, error) {
	if id, ok := strings.CutPrefix(ref, "spotify:"); ok && id != "" {
		return id, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", app.ErrInvalidReference, err)
	}
	if u.Hostname() != "open.spotify.com" && u.Hostname() != "spotify.com" {
		return "", fmt.Errorf("%w: not a spotify link", app.ErrInvalidReference)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segments {
		if s == "playlist" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("%w: no playlist id in link", app.ErrInvalidReference)
}

type tracksPage struct {
	Items []struct {
		Track *struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			PreviewURL string `json:"preview_url"`
		} `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

func (c *Client) fetchPage(ctx context.Context, token, pageURL string) (*tracksPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracks request returned %s", resp.Status)
	}

	var page tracksPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode tracks page: %w", err)
	}
	return &page, nil
}

// accessToken returns a cached client-credentials token, refreshing a
// minute before it actually expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AccountsURL+"/api/token", body)
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %s", resp.Status)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	c.token = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ExtractYouTubeID returns the video id from watch, youtu.be, embed, shorts
// and /v/ style links.
func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(youtubeURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	host := strings.ToLower(u.Host)

	if strings.Contains(host, "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no video ID found in youtu.be URL")
	}

	if strings.Contains(host, "youtube.com") {
		if strings.HasPrefix(u.Path, "/watch") {
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
	}

	return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
}

// CanonicalYouTubeURL rewrites any recognised YouTube link to the plain
// watch form, dropping playlist and timestamp parameters. Other URLs are
// returned trimmed but otherwise untouched.
func CanonicalYouTubeURL(raw string) string {
	id, err := ExtractYouTubeID(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}

func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

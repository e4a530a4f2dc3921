package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// FetchCandidates downloads a public proxy-list page and extracts candidates.
func FetchCandidates(ctx context.Context, client *http.Client, sourceURL string) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list status %d", resp.StatusCode)
	}

	return ParseProxyList(resp.Body)
}

// ParseProxyList reads an HTML document and returns "http://ip:port" for every
// table row whose first two cells are an IP address and a port.
func ParseProxyList(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	seen := make(map[string]bool)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			if ep, ok := rowEndpoint(n); ok && !seen[ep] {
				seen[ep] = true
				out = append(out, ep)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out, nil
}

func rowEndpoint(tr *html.Node) (string, bool) {
	var cells []string
	for c := tr.FirstChild; c != nil && len(cells) < 2; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, strings.TrimSpace(textOf(c)))
		}
	}
	if len(cells) < 2 {
		return "", false
	}

	ip, port := cells[0], cells[1]
	if net.ParseIP(ip) == nil {
		return "", false
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return "", false
	}
	return "http://" + net.JoinHostPort(ip, port), true
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textOf(c))
	}
	return sb.String()
}

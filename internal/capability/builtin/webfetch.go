package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

const (
	defaultFetchMaxChars = 20_000
	fetchTimeout         = 30 * time.Second
	maxResponseSize      = 10 * 1024 * 1024
)

var privateRanges = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
)

type fetchArgs struct {
	URL      string `json:"url" jsonschema_description:"The http or https URL to fetch"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema_description:"Maximum characters of text to return"`
}

// WebFetch downloads a page and returns its readable text.
type WebFetch struct {
	Client   *http.Client
	MaxChars int

	// AllowPrivate permits loopback and private network targets.
	AllowPrivate bool
}

// NewWebFetch creates the web_fetch capability. A nil client gets a 30 second timeout.
func NewWebFetch(client *http.Client, maxChars int) *WebFetch {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	if maxChars <= 0 {
		maxChars = defaultFetchMaxChars
	}
	return &WebFetch{Client: client, MaxChars: maxChars}
}

func (w *WebFetch) Name() string { return "web_fetch" }

func (w *WebFetch) Description() string {
	return "Fetch a web page over HTTP(S) and return its text content with markup removed."
}

func (w *WebFetch) ParameterSchema() *jsonschema.Schema { return capability.SchemaFor[fetchArgs]() }

func (w *WebFetch) Execute(ctx context.Context, arguments string) (string, error) {
	raw := strings.TrimSpace(gjson.Get(arguments, "url").String())
	if raw == "" {
		return "", errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("URL must start with http:// or https://")
	}
	if !w.AllowPrivate {
		if err := validateTarget(u.Hostname()); err != nil {
			return "", fmt.Errorf("blocked: %w", err)
		}
	}

	maxChars := w.MaxChars
	if n := gjson.Get(arguments, "max_chars").Int(); n > 0 && int(n) < maxChars {
		maxChars = int(n)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "ZenClaw-Fetch/1.0")

	resp, err := w.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching URL: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		text = extractText(text)
	}
	text = truncateChars(text, maxChars)

	return fmt.Sprintf("Status: %d\nURL: %s\n\n%s", resp.StatusCode, u.String(), text), nil
}

// extractText drops markup, scripts and styles and collapses whitespace.
func extractText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isSkippedTag(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isSkippedTag(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style" || name == "noscript"
}

func truncateChars(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + fmt.Sprintf("\n... [truncated, %d total chars]", len(r))
}

func validateTarget(host string) error {
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolving hostname %q: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("URL resolves to private address %s", ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, cidr := range privateRanges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(ranges ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(ranges))
	for _, r := range ranges {
		_, cidr, err := net.ParseCIDR(r)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}

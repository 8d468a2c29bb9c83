package mail_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const (
	// DefaultTargetAddress is the mailbox the assistant answers for.
	DefaultTargetAddress = "tiempoactualizado@gmail.com"

	// DefaultLabelName marks messages that were already answered.
	DefaultLabelName = "AutoRespondido"

	defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// GmailConfig holds configuration for the Gmail provider.
type GmailConfig struct {
	// HTTPClient must carry OAuth credentials; token acquisition and
	// refresh happen outside this package.
	HTTPClient *http.Client

	// BaseURL overrides the Gmail API endpoint. Used by tests.
	BaseURL string

	// TargetAddress filters the unread query. Defaults to
	// DefaultTargetAddress.
	TargetAddress string

	// LabelName is the processed label. Defaults to DefaultLabelName.
	LabelName string
}

// GmailProvider implements Provider over the Gmail REST API.
type GmailProvider struct {
	client        *http.Client
	baseURL       string
	targetAddress string
	labelName     string

	labelMux sync.Mutex
	labelID  string // cached get-or-create result
}

// NewGmailProvider creates a new Gmail provider.
func NewGmailProvider(cfg GmailConfig) (*GmailProvider, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TargetAddress == "" {
		cfg.TargetAddress = DefaultTargetAddress
	}
	if cfg.LabelName == "" {
		cfg.LabelName = DefaultLabelName
	}

	return &GmailProvider{
		client:        cfg.HTTPClient,
		baseURL:       cfg.BaseURL,
		targetAddress: cfg.TargetAddress,
		labelName:     cfg.LabelName,
	}, nil
}

// gmailPart mirrors the Gmail API message payload tree.
type gmailPart struct {
	MimeType string        `json:"mimeType"`
	Headers  []gmailHeader `json:"headers"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []*gmailPart `json:"parts"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailMessage struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"threadId"`
	Snippet  string     `json:"snippet"`
	Payload  *gmailPart `json:"payload"`
}

// FetchUnread lists unread messages addressed to the target.
func (p *GmailProvider) FetchUnread(ctx context.Context, maxResults int) ([]MessageRef, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("q", fmt.Sprintf("is:unread to:%s", p.targetAddress))
	query.Set("maxResults", strconv.Itoa(maxResults))

	var result struct {
		Messages []struct {
			ID       string `json:"id"`
			ThreadID string `json:"threadId"`
		} `json:"messages"`
	}
	if err := p.doGet(ctx, "/users/me/messages", query, &result); err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	refs := make([]MessageRef, 0, len(result.Messages))
	for _, m := range result.Messages {
		refs = append(refs, MessageRef{ID: m.ID, ThreadID: m.ThreadID})
	}
	return refs, nil
}

// ReadMessage fetches a message in full format and decodes its headers and
// body text.
func (p *GmailProvider) ReadMessage(ctx context.Context, id string) (*Message, error) {
	query := url.Values{}
	query.Set("format", "full")

	var msg gmailMessage
	if err := p.doGet(ctx, "/users/me/messages/"+url.PathEscape(id), query, &msg); err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", id, err)
	}

	return &Message{
		ID:        msg.ID,
		ThreadID:  msg.ThreadID,
		Sender:    senderAddress(msg.Payload),
		Subject:   headerValue(msg.Payload, "Subject"),
		BodyText:  extractBodyText(&msg),
		MessageID: headerValue(msg.Payload, "Message-ID"),
	}, nil
}

// SendReply sends an RFC 2822 reply, threaded when the original message ID
// and thread are known.
func (p *GmailProvider) SendReply(ctx context.Context, reply Reply) error {
	if reply.To == "" {
		return fmt.Errorf("reply recipient is required")
	}

	raw := buildRawReply(reply)
	body := map[string]any{
		"raw": base64.URLEncoding.EncodeToString(raw),
	}
	if reply.ThreadID != "" {
		body["threadId"] = reply.ThreadID
	}

	if err := p.doPost(ctx, "/users/me/messages/send", body, nil); err != nil {
		return fmt.Errorf("failed to send reply to %s: %w", reply.To, err)
	}
	return nil
}

// MarkProcessed clears UNREAD and applies the processed label.
func (p *GmailProvider) MarkProcessed(ctx context.Context, id string) error {
	labelID, err := p.ensureLabel(ctx)
	if err != nil {
		return err
	}

	body := map[string]any{
		"removeLabelIds": []string{"UNREAD"},
		"addLabelIds":    []string{labelID},
	}
	if err := p.doPost(ctx, "/users/me/messages/"+url.PathEscape(id)+"/modify", body, nil); err != nil {
		return fmt.Errorf("failed to mark message %s processed: %w", id, err)
	}
	return nil
}

// ensureLabel resolves the processed label ID, creating the label on first
// use and caching the result.
func (p *GmailProvider) ensureLabel(ctx context.Context) (string, error) {
	p.labelMux.Lock()
	defer p.labelMux.Unlock()

	if p.labelID != "" {
		return p.labelID, nil
	}

	var list struct {
		Labels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"labels"`
	}
	if err := p.doGet(ctx, "/users/me/labels", nil, &list); err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, lb := range list.Labels {
		if lb.Name == p.labelName {
			p.labelID = lb.ID
			return p.labelID, nil
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"name":                  p.labelName,
		"labelListVisibility":   "labelShow",
		"messageListVisibility": "show",
	}
	if err := p.doPost(ctx, "/users/me/labels", body, &created); err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", p.labelName, err)
	}

	p.labelID = created.ID
	return p.labelID, nil
}

func (p *GmailProvider) doGet(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := p.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return p.do(req, out)
}

func (p *GmailProvider) doPost(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req, out)
}

func (p *GmailProvider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// senderAddress parses the bare address from the From header. Empty when
// the header is missing or malformed.
func senderAddress(payload *gmailPart) string {
	from := headerValue(payload, "From")
	if from == "" {
		return ""
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return addr.Address
}

func headerValue(payload *gmailPart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBodyText prefers the text/plain part, falls back to tag-stripped
// text/html and finally the snippet.
func extractBodyText(msg *gmailMessage) string {
	payload := msg.Payload
	if payload == nil {
		return strings.TrimSpace(msg.Snippet)
	}

	data := ""
	if payload.MimeType == "text/plain" && payload.Body.Data != "" {
		data = payload.Body.Data
	} else if len(payload.Parts) > 0 {
		data = findPart(payload.Parts, "text/plain")
	}
	if data == "" && len(payload.Parts) > 0 {
		data = findPart(payload.Parts, "text/html")
	}

	if data == "" {
		return strings.TrimSpace(msg.Snippet)
	}

	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return strings.TrimSpace(msg.Snippet)
	}

	text := htmlTagPattern.ReplaceAllString(string(decoded), " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// findPart walks the MIME tree depth-first for the first part of the given
// type carrying body data.
func findPart(parts []*gmailPart, mimeType string) string {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if part.MimeType == mimeType && part.Body.Data != "" {
			return part.Body.Data
		}
		if len(part.Parts) > 0 {
			if data := findPart(part.Parts, mimeType); data != "" {
				return data
			}
		}
	}
	return ""
}

// buildRawReply renders the RFC 2822 reply message.
func buildRawReply(reply Reply) []byte {
	var sb strings.Builder
	sb.WriteString("To: " + reply.To + "\r\n")
	sb.WriteString("Subject: " + reply.Subject + "\r\n")
	if reply.InReplyTo != "" {
		sb.WriteString("In-Reply-To: " + reply.InReplyTo + "\r\n")
		sb.WriteString("References: " + reply.InReplyTo + "\r\n")
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(reply.Body)
	return []byte(sb.String())
}

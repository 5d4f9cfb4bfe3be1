// Package messaging delivers notification candidates to the contacts API
// of the messaging service.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"billing_notifier/internal/domain/message"

	"github.com/sirupsen/logrus"
)

// ErrMissingToken marks sends skipped because no access token is configured.
var ErrMissingToken = errors.New("messaging API token not configured")

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 4096
)

// APIError is a non-2xx answer from the messaging API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("messaging API returned status %d", e.StatusCode)
}

type Options struct {
	URL        string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client posts one contact update per candidate. Sends are never retried:
// the endpoint is not idempotent.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	logger     *logrus.Entry
}

func NewClient(opts Options, logger *logrus.Entry) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		url:        opts.URL,
		token:      opts.Token,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Action is one step executed by the messaging service on the contact.
type Action struct {
	Action    string `json:"action"`
	FieldName string `json:"field_name,omitempty"`
	Value     string `json:"value,omitempty"`
	FlowID    int    `json:"flow_id,omitempty"`
}

// ContactRequest is the body posted for a candidate.
type ContactRequest struct {
	Phone     string   `json:"phone"`
	FirstName string   `json:"first_name"`
	Actions   []Action `json:"actions"`
}

// NewContactRequest derives the action list: one set_field_value per
// populated mapping, then exactly one send_flow.
func NewContactRequest(c message.Candidate) ContactRequest {
	actions := make([]Action, 0, len(c.FieldMappings)+1)
	for _, f := range c.FieldMappings {
		if f.Name == "" || f.Value == "" {
			continue
		}
		actions = append(actions, Action{Action: "set_field_value", FieldName: f.Name, Value: f.Value})
	}
	actions = append(actions, Action{Action: "send_flow", FlowID: c.FlowID})
	return ContactRequest{Phone: c.Phone, FirstName: c.FirstName, Actions: actions}
}

// Send delivers a single candidate.
func (c *Client) Send(ctx context.Context, cand message.Candidate) error {
	if c.token == "" {
		return ErrMissingToken
	}

	body, err := json.Marshal(NewContactRequest(cand))
	if err != nil {
		return fmt.Errorf("error encoding contact request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building contact request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ACCESS-TOKEN", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error posting contact request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// SendBatch sends candidates strictly one after another. A failed send is
// logged and counted; the remaining candidates are still attempted unless
// ctx is done, in which case the rest are left unsent and uncounted.
func (c *Client) SendBatch(ctx context.Context, candidates []message.Candidate) message.BatchResult {
	result := message.BatchResult{
		Total:      len(candidates),
		SentByKind: make(map[message.TemplateKind]int),
	}

	for i, cand := range candidates {
		if ctx.Err() != nil {
			c.logger.WithFields(logrus.Fields{"remaining": len(candidates) - i}).Warn("Batch send interrupted")
			break
		}
		log := c.logger.WithFields(logrus.Fields{"phone": cand.Phone, "flow_id": cand.FlowID, "kind": cand.Kind})

		err := c.Send(ctx, cand)
		if err == nil {
			result.Sent++
			result.SentByKind[cand.Kind]++
			log.Info("Message sent")
			continue
		}

		result.Failed++
		var apiErr *APIError
		switch {
		case errors.Is(err, ErrMissingToken):
			log.Warn("Messaging API token not configured, skipping send")
		case errors.As(err, &apiErr):
			log.WithError(err).WithField("response_body", apiErr.Body).Error("Messaging API rejected message")
		default:
			log.WithError(err).Error("Failed to send message")
		}
	}

	c.logger.WithFields(logrus.Fields{"sent": result.Sent, "failed": result.Failed, "total": result.Total}).Info("Batch send finished")
	return result
}

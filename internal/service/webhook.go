package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"
)

// CommunityWebhookService posts marketplace announcements to a
// Discord/Slack-compatible webhook (campus community channel). All sends
// are asynchronous and best-effort.
type CommunityWebhookService struct {
	webhookURL string
	client     *http.Client
}

func NewCommunityWebhookService(webhookURL string) *CommunityWebhookService {
	return &CommunityWebhookService{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []webhookField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []webhookEmbed `json:"embeds"`
}

func (s *CommunityWebhookService) send(payload webhookPayload) {
	if s.webhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[webhook] marshal error: %v", err)
		return
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[webhook] send error: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("[webhook] HTTP %d for webhook", resp.StatusCode)
	}
}

// AnnounceListing posts a freshly published listing to the community feed.
func (s *CommunityWebhookService) AnnounceListing(l *model.Listing) {
	priceField := webhookField{Name: "Price", Value: fmt.Sprintf("$%d", l.Price), Inline: true}
	if l.BiddingEnabled {
		priceField.Name = "Starting bid"
	}
	s.send(webhookPayload{
		Username: "CMart",
		Embeds: []webhookEmbed{{
			Title:       l.Title,
			Description: l.Description,
			Color:       0x3498DB,
			Fields: []webhookField{
				priceField,
				{Name: "Category", Value: l.Category, Inline: true},
			},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}},
	})
}

package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

// FCMPusher posts notifications to an FCM HTTPv1 endpoint so backgrounded
// apps still get offers and trip updates.
type FCMPusher struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMPusher(endpoint, key string) *FCMPusher {
	return &FCMPusher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMPusher) Push(role models.Role, recipientID string, n models.Notification) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"token": "",
			"data": map[string]interface{}{
				"recipient_role": string(role),
				"recipient_id":   recipientID,
				"notification":   n,
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

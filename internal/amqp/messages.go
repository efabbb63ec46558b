package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventResponseSubmitted is the AMQP message type of ResponseSubmittedMessage.
const EventResponseSubmitted = "response.submitted"

// ResponseSubmittedMessage announces a newly stored survey response.
// Consumers re-read the store; the message carries no response data.
type ResponseSubmittedMessage struct {
	MessageID   string    `json:"message_id"`
	ResponseID  string    `json:"response_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewResponseSubmittedMessage(responseID string, submittedAt time.Time) *ResponseSubmittedMessage {
	return &ResponseSubmittedMessage{
		MessageID:   uuid.NewString(),
		ResponseID:  responseID,
		SubmittedAt: submittedAt,
		Timestamp:   time.Now(),
	}
}

func (m *ResponseSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ResponseSubmittedMessageFromJSON(data []byte) (*ResponseSubmittedMessage, error) {
	var msg ResponseSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ResponseID == "" {
		return nil, fmt.Errorf("response id is required")
	}
	return &msg, nil
}

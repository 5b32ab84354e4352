package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"rentline/internal/domain/inbox"
	"rentline/internal/infra/wire"
)

// Outbound action frames understood by the relay.

// GetMessagesFrame requests the message history for one conversation.
type GetMessagesFrame struct {
	Action   string `json:"action"`
	ItemID   string `json:"itemid"`
	RenterID string `json:"renterid"`
}

// NewGetMessages builds the history bootstrap request.
func NewGetMessages(itemID, renterID string) GetMessagesFrame {
	return GetMessagesFrame{Action: "getmessages", ItemID: itemID, RenterID: renterID}
}

// SendMessageFrame delivers one chat message.
type SendMessageFrame struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	ItemID    string `json:"itemid"`
	OwnerID   string `json:"ownerid"`
	RenterID  string `json:"renterid"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

// NewSendMessage builds a send frame stamped with the client clock.
func NewSendMessage(body, itemID, ownerID, renterID, sender string, at time.Time) SendMessageFrame {
	return SendMessageFrame{
		Action:    "sendmessage",
		Message:   body,
		ItemID:    itemID,
		OwnerID:   ownerID,
		RenterID:  renterID,
		Sender:    sender,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// wireMessage is the relay's message shape, shared by bulk history
// replies and live pushes. The timestamp travels under either
// MessageTimestamp or timestamp depending on the relay code path.
type wireMessage struct {
	Sender           string    `json:"sender"`
	Message          string    `json:"message"`
	ItemID           string    `json:"itemid"`
	OwnerID          string    `json:"ownerid"`
	RenterID         string    `json:"renterid"`
	MessageTimestamp wire.Time `json:"MessageTimestamp"`
	Timestamp        wire.Time `json:"timestamp"`
	Admin            string    `json:"admin"`
}

func (m wireMessage) occurredAt() time.Time {
	if !m.MessageTimestamp.IsZero() {
		return m.MessageTimestamp.Time
	}
	return m.Timestamp.Time
}

func (m wireMessage) kind() inbox.Kind {
	switch m.Admin {
	case "offer_made":
		return inbox.KindOfferMade
	case "offer_accepted":
		return inbox.KindOfferAccepted
	default:
		return inbox.KindText
	}
}

func (m wireMessage) toMessage() inbox.Message {
	return inbox.Message{
		Sender:     m.Sender,
		Body:       m.Message,
		ItemID:     m.ItemID,
		OwnerID:    m.OwnerID,
		RenterID:   m.RenterID,
		OccurredAt: m.occurredAt(),
		Kind:       m.kind(),
	}
}

// inboundEnvelope resolves the relay's two inbound shapes once: a bulk
// history snapshot {"messages": [...]} or a bare live message object.
type inboundEnvelope struct {
	Messages []wireMessage `json:"messages"`
}

// Normalize flattens one inbound text frame into messages in frame
// order. Frames that are neither a bulk snapshot nor a live message
// yield an error; callers drop and log them without touching the
// connection.
func Normalize(raw []byte) ([]inbox.Message, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Messages != nil {
		out := make([]inbox.Message, 0, len(env.Messages))
		for _, wm := range env.Messages {
			out = append(out, wm.toMessage())
		}
		return out, nil
	}

	var single wireMessage
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("relay: undecodable frame: %w", err)
	}
	if single.ItemID == "" || (single.Message == "" && single.Admin == "") {
		return nil, fmt.Errorf("relay: frame is neither snapshot nor message")
	}
	return []inbox.Message{single.toMessage()}, nil
}

package dto

import (
	"time"

	"rentline/internal/domain/inbox"
)

// InboxMessage is one chat message as served to UI consumers.
type InboxMessage struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Mine       bool      `json:"mine"`
}

// InboxGroup is one conversation thread.
type InboxGroup struct {
	ItemID           string         `json:"itemid"`
	Counterparty     string         `json:"counterparty"`
	Role             string         `json:"role"`
	ItemTitle        string         `json:"item_title"`
	ItemImage        string         `json:"item_image"`
	Messages         []InboxMessage `json:"messages"`
	LatestActivityAt time.Time      `json:"latest_activity_at"`
	HasUnread        bool           `json:"has_unread"`
}

// InboxItem is one owned item with its conversation threads.
type InboxItem struct {
	ItemID           string       `json:"itemid"`
	Title            string       `json:"title"`
	Image            string       `json:"image"`
	LatestActivityAt time.Time    `json:"latest_activity_at"`
	HasUnread        bool         `json:"has_unread"`
	Groups           []InboxGroup `json:"groups"`
}

// GroupFromSnapshot maps a store projection onto the transport shape.
func GroupFromSnapshot(snap inbox.GroupSnapshot, localID string) InboxGroup {
	group := InboxGroup{
		ItemID:           snap.Key.ItemID,
		Counterparty:     snap.Key.Counterparty,
		Role:             string(snap.Key.Role),
		ItemTitle:        snap.Item.Title,
		ItemImage:        snap.Item.ImageURL,
		Messages:         make([]InboxMessage, 0, len(snap.Messages)),
		LatestActivityAt: snap.LatestActivityAt,
		HasUnread:        snap.HasUnread,
	}
	for _, msg := range snap.Messages {
		group.Messages = append(group.Messages, InboxMessage{
			Sender:     msg.Sender,
			Body:       msg.Body,
			Kind:       string(msg.Kind),
			OccurredAt: msg.OccurredAt,
			Mine:       msg.Sender == localID,
		})
	}
	return group
}

// ItemFromSnapshot maps an owned-item projection onto the transport
// shape.
func ItemFromSnapshot(snap inbox.ItemSnapshot, localID string) InboxItem {
	item := InboxItem{
		ItemID:           snap.Item.ID,
		Title:            snap.Item.Title,
		Image:            snap.Item.ImageURL,
		LatestActivityAt: snap.LatestActivityAt,
		HasUnread:        snap.HasUnread,
		Groups:           make([]InboxGroup, 0, len(snap.Groups)),
	}
	for _, g := range snap.Groups {
		item.Groups = append(item.Groups, GroupFromSnapshot(g, localID))
	}
	return item
}

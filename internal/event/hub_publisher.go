package event

import (
	"context"
	"encoding/json"

	"go-warehouse-fulfillment/internal/ws"
)

// HubPublisher broadcasts events to websocket clients.
type HubPublisher struct {
	hub *ws.Hub
}

func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.hub.Send(msg)
}

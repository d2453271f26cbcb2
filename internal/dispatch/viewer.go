package dispatch

import (
	"encoding/json"
	"errors"

	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/roomcode"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

type viewerJoinPayload struct {
	RoomCode string `json:"roomCode"`
}

func (d *Dispatcher) handleViewer(client *Client, cmd *Command) error {
	switch cmd.Type {
	case "join":
		return d.viewerJoin(client, cmd.Payload)
	default:
		return ErrUnknownCommand
	}
}

// viewerJoin admits ended sessions too: screens keep showing the final
// spotlighted set until the room is torn down.
func (d *Dispatcher) viewerJoin(client *Client, raw json.RawMessage) error {
	var p viewerJoinPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !roomcode.Valid(p.RoomCode) {
		return ErrInvalidPayload
	}

	sess, err := d.store.SessionByRoomCode(p.RoomCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	// public: already carries everything a viewer may see; subscribing
	// to session: as well would deliver each envelope twice
	d.hub.Subscribe(ws.Channel(ws.ChannelPublic, sess.ID), client.Conn)
	d.hub.Send(client.Conn, ws.Envelope{
		Type:      ws.TypeJoined,
		SessionID: sess.ID,
		Payload:   map[string]string{"sessionId": sess.ID, "role": string(projection.RoleViewer)},
	})
	return d.bcast.Snapshot(client.Conn, sess.ID, projection.RoleViewer)
}

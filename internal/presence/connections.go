package presence

import (
	"fmt"
	"sort"
)

// Channel is the write side of a live duplex connection. Send must not
// block; it reports false when the message could not be queued.
type Channel interface {
	Send(msg []byte) bool
	Close()
}

// ConnectionDirectory maps connection ids to channels and keeps the
// connection <-> participant binding indexed in both directions.
type ConnectionDirectory struct {
	channels      map[string]Channel
	participantOf map[string]string
	connectionOf  map[string]string
}

func NewConnectionDirectory() *ConnectionDirectory {
	return &ConnectionDirectory{
		channels:      make(map[string]Channel),
		participantOf: make(map[string]string),
		connectionOf:  make(map[string]string),
	}
}

func (d *ConnectionDirectory) Register(connectionID string, ch Channel) error {
	if connectionID == "" || ch == nil {
		return fmt.Errorf("%w: connection id and channel are required", ErrInvalidArgument)
	}
	if _, exists := d.channels[connectionID]; exists {
		return fmt.Errorf("%w: connection %s already registered", ErrConflict, connectionID)
	}
	d.channels[connectionID] = ch
	return nil
}

// Unregister removes the connection and returns the participant that was
// bound to it, if any.
func (d *ConnectionDirectory) Unregister(connectionID string) (string, bool) {
	if _, ok := d.channels[connectionID]; !ok {
		return "", false
	}
	delete(d.channels, connectionID)
	participantID, bound := d.participantOf[connectionID]
	if bound {
		delete(d.participantOf, connectionID)
		if d.connectionOf[participantID] == connectionID {
			delete(d.connectionOf, participantID)
		}
	}
	return participantID, bound
}

func (d *ConnectionDirectory) Lookup(connectionID string) (Channel, error) {
	ch, ok := d.channels[connectionID]
	if !ok {
		return nil, fmt.Errorf("%w: connection %s", ErrNotFound, connectionID)
	}
	return ch, nil
}

func (d *ConnectionDirectory) ChannelFor(participantID string) (Channel, error) {
	connectionID, ok := d.connectionOf[participantID]
	if !ok {
		return nil, fmt.Errorf("%w: no connection for %s", ErrNotFound, participantID)
	}
	return d.Lookup(connectionID)
}

// BoundParticipant returns the participant currently bound to connectionID.
func (d *ConnectionDirectory) BoundParticipant(connectionID string) (string, bool) {
	p, ok := d.participantOf[connectionID]
	return p, ok
}

// Bind associates participantID with connectionID, replacing any previous
// binding on either side. One participant per connection.
func (d *ConnectionDirectory) Bind(connectionID, participantID string) error {
	if _, ok := d.channels[connectionID]; !ok {
		return fmt.Errorf("%w: connection %s", ErrNotFound, connectionID)
	}
	if prev, ok := d.connectionOf[participantID]; ok && prev != connectionID {
		delete(d.participantOf, prev)
	}
	if prev, ok := d.participantOf[connectionID]; ok && prev != participantID {
		delete(d.connectionOf, prev)
	}
	d.participantOf[connectionID] = participantID
	d.connectionOf[participantID] = connectionID
	return nil
}

func (d *ConnectionDirectory) Unbind(participantID string) {
	connectionID, ok := d.connectionOf[participantID]
	if !ok {
		return
	}
	delete(d.connectionOf, participantID)
	delete(d.participantOf, connectionID)
}

func (d *ConnectionDirectory) Len() int { return len(d.channels) }

// IDs returns the registered connection ids in sorted order.
func (d *ConnectionDirectory) IDs() []string {
	ids := make([]string, 0, len(d.channels))
	for id := range d.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package network

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cbodonnell/roulette/pkg/messages"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
	// ClientSendBufferSize is how many frames may wait for a slow client before it is dropped
	ClientSendBufferSize = 256
)

// Client represents a connected event stream subscriber
type Client struct {
	ID       uint32
	Encoding messages.Encoding
	send     chan []byte
	closed   bool
}

// ClientManager manages connected clients
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*Client),
	}
}

// ConnectClient registers a client and returns it with a fresh ID.
func (cm *ClientManager) ConnectClient(encoding messages.Encoding) (*Client, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	client := &Client{
		ID:       clientID,
		Encoding: encoding,
		send:     make(chan []byte, ClientSendBufferSize),
	}
	cm.clients[clientID] = client
	return client, nil
}

// DisconnectClient removes a client and closes its send channel.
func (cm *ClientManager) DisconnectClient(clientID uint32) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	cm.disconnect(clientID)
}

func (cm *ClientManager) disconnect(clientID uint32) {
	client, ok := cm.clients[clientID]
	if !ok {
		return
	}
	delete(cm.clients, clientID)
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

func (cm *ClientManager) Count() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.clients)
}

// SendTo queues a message for one client.
func (cm *ClientManager) SendTo(clientID uint32, msg *messages.Message) error {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return fmt.Errorf("client %d not found", clientID)
	}
	b, err := messages.Serialize(msg, client.Encoding)
	if err != nil {
		return err
	}
	select {
	case client.send <- b:
		return nil
	default:
		cm.disconnect(clientID)
		return fmt.Errorf("client %d send buffer is full", clientID)
	}
}

// SendToAll queues a message for every client. Clients whose buffer is full are dropped.
// It returns the number of clients the message was queued for.
func (cm *ClientManager) SendToAll(msg *messages.Message) (int, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	frames := make(map[messages.Encoding][]byte, 3)
	sent := 0
	for id, client := range cm.clients {
		b, ok := frames[client.Encoding]
		if !ok {
			var err error
			b, err = messages.Serialize(msg, client.Encoding)
			if err != nil {
				return sent, err
			}
			frames[client.Encoding] = b
		}
		select {
		case client.send <- b:
			sent++
		default:
			cm.disconnect(id)
		}
	}
	return sent, nil
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

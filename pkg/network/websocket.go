package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cbodonnell/roulette/pkg/log"
	"github.com/cbodonnell/roulette/pkg/messages"
	"nhooyr.io/websocket"
)

const wsWriteTimeout = 5 * time.Second

// SnapshotFunc builds the message sent to a client as soon as it connects.
type SnapshotFunc func() (*messages.Message, error)

// WSServer streams game events to websocket clients.
type WSServer struct {
	port          int
	tls           *TLSConfig
	clientManager *ClientManager
	snapshot      SnapshotFunc
	origins       []string
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port          int
	TLS           *TLSConfig
	ClientManager *ClientManager
	Snapshot      SnapshotFunc
	// AllowedOrigins lists origins as they appear in the Origin header, or "*".
	// Same-host connections are always accepted.
	AllowedOrigins []string
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	if opts.ClientManager == nil {
		opts.ClientManager = NewClientManager()
	}
	return &WSServer{
		port:          opts.Port,
		tls:           opts.TLS,
		clientManager: opts.ClientManager,
		snapshot:      opts.Snapshot,
		origins:       originPatterns(opts.AllowedOrigins),
	}
}

// originPatterns converts origins to the host patterns the upgrader matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			patterns = append(patterns, origin)
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			log.Warn("Ignoring invalid websocket origin: %s", origin)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

func (s *WSServer) ClientManager() *ClientManager {
	return s.clientManager
}

// SendToAll broadcasts a message to every connected client.
func (s *WSServer) SendToAll(msg *messages.Message) (int, error) {
	return s.clientManager.SendToAll(msg)
}

// Start starts the WebSocket server and blocks until ctx is done.
func (s *WSServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("websocket server error: %v", err)
	}
	return nil
}

// Handler upgrades requests to websocket event streams.
// The encoding query parameter selects zstd binary frames (default), JSON text
// frames or flatbuffer binary frames.
func (s *WSServer) Handler() http.Handler {
	return http.HandlerFunc(s.handleWSConnection)
}

func (s *WSServer) handleWSConnection(w http.ResponseWriter, r *http.Request) {
	encoding, err := messages.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client, err := s.clientManager.ConnectClient(encoding)
	if err != nil {
		log.Error("Failed to register WebSocket client: %v", err)
		conn.Close(websocket.StatusTryAgainLater, "server is full")
		return
	}
	log.Debug("New WebSocket client %d from %s", client.ID, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.clientManager.DisconnectClient(client.ID)
		conn.Close(websocket.StatusNormalClosure, "")
		log.Trace("Connection closed for client %d", client.ID)
	}()

	if s.snapshot != nil {
		msg, err := s.snapshot()
		if err != nil {
			log.Error("Failed to build snapshot for client %d: %v", client.ID, err)
		} else if err := s.clientManager.SendTo(client.ID, msg); err != nil {
			log.Error("Failed to send snapshot to client %d: %v", client.ID, err)
		}
	}

	go s.readLoop(ctx, cancel, conn, client)
	s.writeLoop(ctx, conn, client)
}

func (s *WSServer) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				log.Debug("Error reading WebSocket message from client %d: %v", client.ID, err)
			}
			return
		}

		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Warn("Failed to deserialize message from client %d: %v", client.ID, err)
			continue
		}
		switch msg.Type {
		case messages.MessageTypeClientPing:
			pong, err := messages.NewMessage(messages.MessageTypeServerPong, nil)
			if err != nil {
				log.Error("Failed to create pong: %v", err)
				continue
			}
			if err := s.clientManager.SendTo(client.ID, pong); err != nil {
				log.Error("Failed to send pong to client %d: %v", client.ID, err)
			}
		default:
			log.Warn("Unexpected message type from client %d: %s", client.ID, msg.Type)
		}
	}
}

func (s *WSServer) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	frameType := websocket.MessageBinary
	if client.Encoding == messages.EncodingJSON {
		frameType = websocket.MessageText
	}

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-client.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Write(writeCtx, frameType, b)
			cancel()
			if err != nil {
				log.Debug("Failed to write to client %d: %v", client.ID, err)
				return
			}
		}
	}
}

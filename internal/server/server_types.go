package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/veroide/mergehost/internal/remote"
	"github.com/veroide/mergehost/internal/session"
)

func logger() *log.Logger {
	return log.WithPrefix("server")
}

// channelBufferSize is the per-client and broadcast queue length.
const channelBufferSize = 256

// Connection tuning.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4 << 20
)

// Default per-client rate limit.
const (
	defaultRateLimit = 20
	defaultRateBurst = 40
)

// Server accepts WebSocket clients and routes their requests to a
// session.Manager.
type Server struct {
	addr string

	// mu guards clients, stopped, and the collaborators set after creation.
	mu        sync.RWMutex
	clients   map[*Client]bool
	broadcast chan Message
	stopped   bool

	httpServer *http.Server
	upgrader   websocket.Upgrader
	startTime  time.Time
	tlsEnabled bool

	// ctx is cancelled by Stop so in-flight provider and commit requests
	// give up.
	ctx    context.Context
	cancel context.CancelFunc

	manager   *session.Manager
	provider  remote.Provider
	committer session.Committer

	rateLimit rate.Limit
	rateBurst int
}

// Client is one WebSocket connection. Writes go through send so a slow
// client never blocks the broadcaster.
type Client struct {
	conn *websocket.Conn

	// send is the outgoing queue drained by writePump.
	send chan Message

	// done is closed to shut the client down. Senders check it instead of
	// send being closed, which would race.
	done     chan struct{}
	sendOnce sync.Once

	server *Server

	// limiter caps how fast this client may send requests.
	limiter *rate.Limiter
}

// NewServer creates a server that serves sessions from manager.
// Call Start or StartAsync to begin accepting connections.
func NewServer(addr string, manager *session.Manager) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, channelBufferSize),
		upgrader: websocket.Upgrader{
			// Presentation layers are local tools and browser views.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		manager:   manager,
		rateLimit: rate.Limit(defaultRateLimit),
		rateBurst: defaultRateBurst,
	}
}

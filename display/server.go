package display

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// reloadScript makes the served page reconnect and reload whenever a new
// screen-out payload arrives.
const reloadScript = `<script>
(function () {
  var ws = new WebSocket("ws://" + location.host + "/ws");
  ws.onmessage = function () { location.reload(); };
})();
</script>`

// Server serves the most recent screen-out payload on a local HTTP
// address and pushes a reload notification to connected browsers over a
// websocket.
type Server struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	page  []byte
	conns map[*websocket.Conn]struct{}
}

var _ Display = (*Server)(nil)

// NewServer creates a display server; call Start before the first turn.
func NewServer(log *zap.Logger) *Server {
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			// Local page only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Start serves the display page on addr in the background.
func (s *Server) Start(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/ws", s.handleSocket)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.log.Error("Display server stopped", zap.Error(err))
		}
	}()
	s.log.Info("Display available", zap.String("url", "http://"+addr))
}

// Show stores the payload and tells connected browsers to reload.
func (s *Server) Show(data []byte) {
	s.mu.Lock()
	s.page = data
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			s.drop(conn)
		}
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if len(page) == 0 {
		page = []byte("<html><body>Waiting for assistant response...</body></html>")
	}
	w.Write(page)
	w.Write([]byte(reloadScript))
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Display websocket upgrade failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	// Drain control frames until the browser goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

package server

import (
	"net"
	"sync"

	dlms "github.com/openmetering/godlms"
	"github.com/openmetering/godlms/pkg/pdu"
	"github.com/openmetering/godlms/pkg/transport"
	"github.com/openmetering/godlms/pkg/wrapper"
	log "github.com/sirupsen/logrus"
)

// Server accepts TCP connections and speaks the wrapper session
// layer, one association per connection.
type Server struct {
	Addr     string
	Registry *Registry
	Config   Config
	// Wrapper ports: the server port and the client port it
	// addresses notifications to.
	ServerPort uint16
	ClientPort uint16

	mu       sync.Mutex
	listener net.Listener
	sessions map[*wrapper.Session]bool
	closed   bool
}

// NewServer builds a server over a registry.
func NewServer(addr string, registry *Registry, cfg Config) *Server {
	return &Server{
		Addr:       addr,
		Registry:   registry,
		Config:     cfg,
		ServerPort: 1,
		ClientPort: 0x10,
		sessions:   make(map[*wrapper.Session]bool),
	}
}

// Serve listens and blocks until Close.
func (s *Server) Serve() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return dlms.WrapError(dlms.KindConnection, "listen "+s.Addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	log.WithField("addr", s.Addr).Info("dlms server listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return dlms.WrapError(dlms.KindConnection, "accept", err)
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	logger := log.WithField("peer", conn.RemoteAddr())
	logger.Info("connection accepted")

	bound := int(s.Config.MaxPDUSize)
	if bound == 0 {
		bound = 1024
	}
	stream := transport.NewTCPFromConn(conn)
	session := wrapper.New(stream, wrapper.Config{
		Source:      s.ServerPort,
		Destination: s.ClientPort,
		// Headroom for the ciphered envelope around a full PDU.
		MaxPDUSize: bound + 64,
	})
	s.track(session, true)
	defer func() {
		s.track(session, false)
		_ = session.Close()
		logger.Info("connection closed")
	}()

	assoc := newAssociation(s.Config, s.Registry)
	for {
		raw, err := session.Receive()
		if err != nil {
			if !dlms.IsKind(err, dlms.KindTimeout) {
				logger.WithError(err).Debug("receive failed")
				return
			}
			continue
		}
		response, release, err := assoc.handle(raw)
		if err != nil {
			logger.WithError(err).Warn("request failed")
			if dlms.IsKind(err, dlms.KindSecurity) {
				// Authentication and replay failures are fatal to
				// the association.
				return
			}
			continue
		}
		if response != nil {
			if err := session.Send(response); err != nil {
				logger.WithError(err).Debug("send failed")
				return
			}
		}
		if release {
			return
		}
	}
}

func (s *Server) track(session *wrapper.Session, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		s.sessions[session] = true
	} else {
		delete(s.sessions, session)
	}
}

// Notify sends an unsolicited event notification, unciphered, to
// every active session, including sessions whose association is
// ciphered.
func (s *Server) Notify(notification pdu.EventNotification) {
	encoded, err := pdu.Encode(notification)
	if err != nil {
		log.WithError(err).Warn("bad notification")
		return
	}
	s.mu.Lock()
	sessions := make([]*wrapper.Session, 0, len(s.sessions))
	for session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()
	for _, session := range sessions {
		if err := session.Send(encoded); err != nil {
			log.WithError(err).Debug("notification dropped")
		}
	}
}

// Close stops accepting and ends Serve.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

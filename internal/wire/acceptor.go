package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var (
	ErrBadCredentials = errors.New("logon credentials rejected")
	ErrNotLoggedOn    = errors.New("no logged-on session")
)

// Credentials are checked against each inbound logon.
type Credentials struct {
	Username string
	Password string
}

// OrderHandler receives each decoded order submission together with the
// session it arrived on, so reports can be sent back to the same client.
type OrderHandler func(msg NewOrderSingle, sess *Session)

// Session is one authenticated client connection. Writes are serialized;
// concurrent matching tasks report over the same session.
type Session struct {
	conn net.Conn
	mu   sync.Mutex
}

func (s *Session) Send(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteFrame(s.conn, m)
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Acceptor is the venue-side listener. It authenticates logons, tracks live
// sessions and hands order submissions to the configured handler.
type Acceptor struct {
	address string
	port    int
	creds   Credentials
	handler OrderHandler
	cancel  context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]*Session
}

func NewAcceptor(address string, port int, creds Credentials, handler OrderHandler) *Acceptor {
	return &Acceptor{
		address:  address,
		port:     port,
		creds:    creds,
		handler:  handler,
		sessions: make(map[string]*Session),
	}
}

func (a *Acceptor) Shutdown() {
	log.Info().Msg("acceptor shutting down")
	a.cancel()
}

func (a *Acceptor) Run(ctx context.Context) error {
	defer a.Shutdown()

	ctx, a.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", a.address, a.port))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Close the listener when the context dies so Accept unblocks.
	t.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	log.Info().Str("address", a.address).Int("port", a.port).Msg("acceptor running")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
		}

		log.Info().Str("address", conn.RemoteAddr().String()).Msg("new client connected")
		t.Go(func() error {
			a.serve(t, conn)
			return nil
		})
	}
}

// serve authenticates the connection and then pumps order submissions into
// the handler until the client disconnects. A failed logon is answered with a
// session reject and the connection is dropped.
func (a *Acceptor) serve(t *tomb.Tomb, conn net.Conn) {
	defer func() {
		a.removeSession(conn.RemoteAddr().String())
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("error closing connection")
		}
	}()

	msg, err := ReadFrame(conn)
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error reading logon")
		return
	}

	logon, ok := msg.(Logon)
	if !ok || logon.Username != a.creds.Username || logon.Password != a.creds.Password {
		log.Warn().Str("address", conn.RemoteAddr().String()).Msg("logon rejected")
		if err := WriteFrame(conn, SessionReject{Reason: ErrBadCredentials.Error()}); err != nil {
			log.Error().Err(err).Msg("unable to send session reject")
		}
		return
	}

	sess := &Session{conn: conn}
	a.addSession(sess)
	if err := sess.Send(Logon{Username: logon.Username}); err != nil {
		log.Error().Err(err).Msg("unable to confirm logon")
		return
	}
	log.Info().Str("address", sess.RemoteAddr()).Str("username", logon.Username).Msg("session logged on")

	for {
		select {
		case <-t.Dying():
			return
		default:
		}

		msg, err := ReadFrame(conn)
		if err != nil {
			// Likely a client disconnect; drop the session.
			log.Info().Err(err).Str("address", sess.RemoteAddr()).Msg("session closed")
			return
		}

		switch m := msg.(type) {
		case Heartbeat:
		case NewOrderSingle:
			a.handler(m, sess)
		default:
			log.Warn().
				Int("type", int(msg.Type())).
				Str("address", sess.RemoteAddr()).
				Msg("unexpected message on session")
		}
	}
}

// addSession is an atomic map add.
func (a *Acceptor) addSession(sess *Session) {
	a.sessionsLock.Lock()
	defer a.sessionsLock.Unlock()
	a.sessions[sess.RemoteAddr()] = sess
}

// removeSession is an atomic map remove.
func (a *Acceptor) removeSession(address string) {
	a.sessionsLock.Lock()
	defer a.sessionsLock.Unlock()
	delete(a.sessions, address)
}

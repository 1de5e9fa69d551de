package wire

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	reconnectDelay    = 2 * time.Second
	heartbeatInterval = 30 * time.Second
)

// ReportHandler receives every execution report delivered on the session.
// Reports for a single order arrive in send order.
type ReportHandler func(report ExecutionReport)

// Initiator is the router-side session: it dials the venue, logs on with the
// injected credentials and keeps reading execution reports, reconnecting with
// a fixed delay when the session drops.
type Initiator struct {
	addr     string
	creds    Credentials
	onReport ReportHandler

	mu       sync.Mutex
	conn     net.Conn
	loggedOn bool
}

func NewInitiator(addr string, creds Credentials, onReport ReportHandler) *Initiator {
	return &Initiator{
		addr:     addr,
		creds:    creds,
		onReport: onReport,
	}
}

// LoggedOn reports whether a live session exists. Sends while logged off are
// skipped by the caller, not queued.
func (i *Initiator) LoggedOn() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loggedOn
}

// Send writes an order submission to the venue.
func (i *Initiator) Send(m NewOrderSingle) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.loggedOn {
		return ErrNotLoggedOn
	}
	return WriteFrame(i.conn, m)
}

// Run drives the connect/logon/read cycle until the tomb dies.
func (i *Initiator) Run(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			i.disconnect()
			return nil
		default:
		}

		if err := i.session(t); err != nil {
			log.Error().Err(err).Str("addr", i.addr).Msg("session ended")
		}

		select {
		case <-t.Dying():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// session runs one full connect-to-disconnect cycle.
func (i *Initiator) session(t *tomb.Tomb) error {
	conn, err := net.Dial("tcp", i.addr)
	if err != nil {
		return fmt.Errorf("unable to dial venue: %w", err)
	}
	defer i.disconnect()

	if err := WriteFrame(conn, Logon{Username: i.creds.Username, Password: i.creds.Password}); err != nil {
		conn.Close()
		return fmt.Errorf("unable to send logon: %w", err)
	}

	msg, err := ReadFrame(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("unable to read logon response: %w", err)
	}
	switch m := msg.(type) {
	case Logon:
		// Confirmed.
	case SessionReject:
		conn.Close()
		return fmt.Errorf("%w: %s", ErrBadCredentials, m.Reason)
	default:
		conn.Close()
		return ErrInvalidMessageType
	}

	i.mu.Lock()
	i.conn = conn
	i.loggedOn = true
	i.mu.Unlock()
	log.Info().Str("addr", i.addr).Msg("logged on")

	// Heartbeats keep the session detectably alive across quiet stretches.
	done := make(chan struct{})
	defer close(done)
	t.Go(func() error {
		heartbeats := time.NewTicker(heartbeatInterval)
		defer heartbeats.Stop()
		for {
			select {
			case <-t.Dying():
				return nil
			case <-done:
				return nil
			case <-heartbeats.C:
				i.mu.Lock()
				if i.loggedOn {
					if err := WriteFrame(conn, Heartbeat{}); err != nil {
						log.Error().Err(err).Msg("unable to send heartbeat")
					}
				}
				i.mu.Unlock()
			}
		}
	})

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msg, err := ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("session read failed: %w", err)
		}

		switch m := msg.(type) {
		case ExecutionReport:
			i.onReport(m)
		case Heartbeat:
		default:
			log.Warn().Int("type", int(msg.Type())).Msg("unexpected message from venue")
		}
	}
}

func (i *Initiator) disconnect() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.conn != nil {
		if err := i.conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing session connection")
		}
		i.conn = nil
	}
	i.loggedOn = false
}

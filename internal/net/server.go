package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	. "bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// Server exposes an engine over TCP. The engine itself is single threaded, so
// every call into it goes through engineLock.
type Server struct {
	cfg  config.Server
	pool *WorkerPool

	engine     *engine.Engine
	engineLock sync.Mutex

	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex

	listener net.Listener
	ready    chan struct{}
}

func New(cfg config.Server, eng *engine.Engine) *Server {
	return &Server{
		cfg:            cfg,
		pool:           NewWorkerPool(cfg.Workers),
		engine:         eng,
		clientSessions: make(map[string]ClientSession),
		ready:          make(chan struct{}),
	}
}

// Ready is closed once the listener is bound. It is never closed if Run fails
// to listen.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address. Only valid after Ready.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run serves clients until ctx is cancelled or a worker fails.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddress())
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return fmt.Errorf("unable to start listener: %w", err)
	}
	s.listener = listener
	close(s.ready)

	// Start the worker pool. Each worker serves one client session at a time.
	s.pool.Setup(t, s.handleConnection)

	t.Go(func() error {
		return s.acceptLoop(t, listener)
	})

	// Unblock Accept and any session reads on shutdown.
	t.Go(func() error {
		<-t.Dying()
		log.Info().Msg("server shutting down")
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("unable to close listener")
		}
		s.closeClientSessions()
		return nil
	})

	log.Info().
		Str("address", listener.Addr().String()).
		Int("workers", s.cfg.Workers).
		Msg("server running")

	err = t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(t *tomb.Tomb, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !t.Alive() {
				return nil
			}
			log.Error().Err(err).Msg("error accepting client")
			continue
		}

		log.Info().
			Str("address", conn.RemoteAddr().String()).
			Msg("new client added")
		s.addClientSession(conn)

		// Sessions hold a worker until they end, so a connection beyond the
		// pool size waits for one to free up.
		if s.pool.Idle() == 0 {
			log.Warn().
				Str("address", conn.RemoteAddr().String()).
				Int("workers", s.cfg.Workers).
				Msg("all workers busy, connection queued")
		}

		// Pass over the connection to be served.
		if !s.pool.AddTask(t, conn) {
			s.deleteClientSession(conn.RemoteAddr().String())
			_ = conn.Close()
			return nil
		}
	}
}

// handleConnection serves one client session until it disconnects, idles out
// or sends something unparseable. Client failures are logged and never
// returned; any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}
	address := conn.RemoteAddr().String()

	defer func() {
		s.deleteClientSession(address)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("address", address).Err(err).Msg("unable to close connection")
		}
	}()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	for t.Alive() {
		if timeout := s.cfg.IdleTimeout(); timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				log.Error().
					Str("address", address).
					Err(err).
					Msg("failed setting deadline for connection")
				return nil
			}
		}

		message, err := ReadMessage(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Info().Str("address", address).Msg("client disconnected")
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				log.Info().Str("address", address).Msg("client idle, closing session")
				return nil
			}
			log.Error().
				Err(err).
				Str("address", address).
				Msg("error reading message")
			// The stream cannot be resynchronised after a bad frame.
			if errors.Is(err, ErrInvalidMessageType) || errors.Is(err, ErrInvalidSide) {
				_ = s.writeReports(writer, []Report{errorReport(err)})
			}
			return nil
		}

		if err := s.writeReports(writer, s.dispatch(message)); err != nil {
			log.Error().
				Err(err).
				Str("address", address).
				Msg("unable to send reports")
			return nil
		}
	}
	return nil
}

func (s *Server) writeReports(w *bufio.Writer, reports []Report) error {
	for i := range reports {
		buf, err := reports[i].Serialize()
		if err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return w.Flush()
}

// dispatch runs a request against the engine and builds the reply.
func (s *Server) dispatch(message Message) []Report {
	switch m := message.(type) {
	case NewOrderMessage:
		if err := ValidateOrder(m.Side, m.Symbol, m.LimitPrice, m.Quantity); err != nil {
			log.Warn().Err(err).Str("symbol", m.Symbol).Msg("order rejected")
			return []Report{errorReport(err)}
		}

		s.engineLock.Lock()
		result := s.engine.Submit(m.Side, m.Symbol, m.LimitPrice, m.Quantity)
		s.engineLock.Unlock()

		log.Info().
			Str("side", m.Side.String()).
			Str("symbol", m.Symbol).
			Uint64("price", m.LimitPrice).
			Uint64("quantity", m.Quantity).
			Int("trades", len(result.Trades)).
			Bool("rested", result.Rested).
			Msg("order placed")

		reports := make([]Report, 0, len(result.Trades)+2)
		for _, trade := range result.Trades {
			reports = append(reports, tradeReport(ExecutionReport, trade))
		}
		if result.Rested {
			reports = append(reports, orderReport(RestingReport, result.Residual))
		}
		return append(reports, endReport())

	case QueryOrdersMessage:
		s.engineLock.Lock()
		orders := s.engine.PendingOrders(m.Side)
		s.engineLock.Unlock()

		reports := make([]Report, 0, len(orders)+1)
		for _, order := range orders {
			reports = append(reports, orderReport(OrderReport, order))
		}
		return append(reports, endReport())

	case BaseMessage:
		switch m.TypeOf {
		case Heartbeat:
			return nil
		case QueryTrades:
			s.engineLock.Lock()
			trades := s.engine.TradeHistory()
			s.engineLock.Unlock()

			reports := make([]Report, 0, len(trades)+1)
			for _, trade := range trades {
				reports = append(reports, tradeReport(TradeReport, trade))
			}
			return append(reports, endReport())
		case QueryPrices:
			s.engineLock.Lock()
			prices := s.engine.PriceSnapshot()
			s.engineLock.Unlock()

			reports := make([]Report, 0, len(prices)+1)
			for _, entry := range prices {
				reports = append(reports, priceReport(entry))
			}
			return append(reports, endReport())
		}
	}
	return []Report{errorReport(fmt.Errorf("%w: %s", ErrInvalidMessageType, message.GetType()))}
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}

func (s *Server) closeClientSessions() {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	for address, session := range s.clientSessions {
		if err := session.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Str("address", address).Err(err).Msg("unable to close session")
		}
		delete(s.clientSessions, address)
	}
}

// sessions returns the number of tracked client sessions.
func (s *Server) sessions() int {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	return len(s.clientSessions)
}

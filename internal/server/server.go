package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/dpavlenko/cryptoquest/internal/logging"
)

// requestReadTimeout caps how long a client may take to send its single
// request line.
const requestReadTimeout = 10 * time.Second

// TextServer is a minimal line-protocol listener: one request line per
// connection, one text response, then the connection closes. Full routing
// and markup live in the fronting transport; this exists so the core can
// be driven end to end.
type TextServer struct {
	address string
	handler *Handler
	logger  logging.Logger
}

func NewTextServer(address string, h *Handler, l logging.Logger) *TextServer {
	return &TextServer{
		address: address,
		handler: h,
		logger:  l.With("module", "text_server"),
	}
}

func (s *TextServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping text server...")
		_ = listen.Close()
	}()

	s.logger.Info(ctx, "Starting text server", "address", s.address)

	for {
		conn, err := listen.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *TextServer) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}

	resp := s.handler.Handle(ctx, line)
	if _, err := conn.Write([]byte(resp)); err != nil {
		s.logger.Warn(ctx, "write response failed", "error", err.Error())
	}
}

// SPDX-License-Identifier: EPL-2.0

package scpi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ik5/funcgen/internal/metrics"
)

// MaxCommand bounds one query. Longer input gets an error reply and the
// connection is closed, since the scanner cannot resynchronize.
const MaxCommand = 4096

// Server accepts instrument connections and answers one framed JSON reply
// per query.
type Server struct {
	inst *Instrument
	log  *zap.Logger

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(inst *Instrument, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{inst: inst, log: log, conns: make(map[net.Conn]struct{})}
}

// Serve accepts connections on ln until ctx is cancelled. Playback keeps
// running across connections and is stopped when Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
		s.closeAll()
	}()
	defer func() {
		s.wg.Wait()
		s.inst.Stop()
	}()

	s.log.Info("instrument listening", zap.Stringer("addr", ln.Addr()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) track(c net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if open {
		s.conns[c] = struct{}{}
		metrics.Connections.Inc()
		return
	}
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		metrics.Connections.Dec()
		c.Close()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.conns {
		c.Close()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	log := s.log.With(zap.Stringer("remote", conn.RemoteAddr()))
	log.Info("client connected")
	defer log.Info("client disconnected")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 256), MaxCommand)
	sc.Split(splitQuery)

	for sc.Scan() {
		raw := sc.Text()
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}

		reply, header, err := s.execute(ctx, raw)
		if err != nil {
			log.Warn("command failed", zap.String("command", raw), zap.Error(err))
			reply = map[string]string{"error": err.Error()}
		} else {
			log.Debug("command handled", zap.String("command", raw))
		}
		metrics.CommandsTotal.WithLabelValues(header, outcome(err)).Inc()

		if werr := WriteFrame(conn, reply); werr != nil {
			log.Warn("writing reply", zap.Error(werr))
			return
		}
	}
	switch err := sc.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		err = fmt.Errorf("%w: over %d bytes", ErrTooLong, MaxCommand)
		log.Warn("dropping client", zap.Error(err))
		metrics.CommandsTotal.WithLabelValues("unknown", outcome(err)).Inc()
		if werr := WriteFrame(conn, map[string]string{"error": err.Error()}); werr != nil {
			log.Warn("writing reply", zap.Error(werr))
		}
	case err != nil && !errors.Is(err, net.ErrClosed):
		log.Warn("reading commands", zap.Error(err))
	}
}

func (s *Server) execute(ctx context.Context, raw string) (Reply, string, error) {
	cmd, err := Parse(raw)
	header := cmd.Header
	if _, ok := subsystems[header]; !ok && header != IDN {
		header = "unknown"
	}
	if err != nil {
		return nil, header, err
	}
	reply, err := s.inst.Execute(ctx, cmd)
	return reply, header, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// splitQuery yields one token per query. A query ends at '?' which stays in
// the token, or at a newline which is dropped.
func splitQuery(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		switch b {
		case '?':
			return i + 1, data[:i+1], nil
		case '\n':
			return i + 1, bytes.TrimRight(data[:i], "\r"), nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// WriteFrame writes v as JSON behind a 4-byte little-endian length.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}
	if uint64(len(body)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}

	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads one reply frame, refusing bodies larger than limit.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if limit > 0 && uint64(n) > uint64(limit) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading reply body: %w", err)
	}
	return body, nil
}

// DefaultTimeout bounds a client query that does not carry a deadline.
const DefaultTimeout = 30 * time.Second

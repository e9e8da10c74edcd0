package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/bobmcallan/translation-helps-proxy/internal/common"
)

// DefaultMaxInFlight is the default number of concurrent tool calls.
const DefaultMaxInFlight = 4

// maxLineSize caps one incoming JSON-RPC message.
const maxLineSize = 10 << 20 // 10MB

// ErrParse ends a session after a line that is not valid JSON.
var ErrParse = errors.New("unparseable JSON-RPC message")

// Session is one MCP session over a line-delimited JSON-RPC stream.
// Tool calls run concurrently, bounded by maxInFlight; every other
// request is answered in arrival order. Responses are written whole, one
// per line, in completion order.
type Session struct {
	server *Server
	in     io.Reader
	out    io.Writer
	logger *common.Logger

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	writeMu sync.Mutex
}

// NewSession creates a session reading requests from in and writing
// responses to out. maxInFlight below 1 uses DefaultMaxInFlight.
func NewSession(srv *Server, in io.Reader, out io.Writer, maxInFlight int, logger *common.Logger) *Session {
	if maxInFlight < 1 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Session{
		server: srv,
		in:     in,
		out:    out,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// Serve runs the session until EOF, a shutdown request, an unparseable
// line or ctx cancellation. It returns only after in-flight tool calls
// have completed. EOF and shutdown return nil.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.wg.Wait()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.read(ctx, lines, readErr)

	s.logger.Info().Msg("stdio session started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stdio session cancelled")
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				s.logger.Error().Str("error", err.Error()).Msg("stdin read failed")
				return fmt.Errorf("failed to read request: %w", err)
			}
			s.logger.Info().Msg("stdin closed, ending session")
			return nil
		case line := <-lines:
			stop, err := s.dispatch(ctx, line)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
	}
}

// read scans lines until EOF. The final error (nil on EOF) is sent after
// the last line has been taken.
func (s *Session) read(ctx context.Context, lines chan<- []byte, readErr chan<- error) {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	readErr <- scanner.Err()
}

// dispatch handles one line. stop ends the session cleanly.
func (s *Session) dispatch(ctx context.Context, line []byte) (stop bool, err error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, nil
	}

	if !json.Valid(line) {
		s.logger.Error().Str("line", truncate(string(line), 200)).Msg("parse error, ending session")
		s.write(newErrorResponse(nil, CodeParseError, "Parse error"))
		return true, ErrParse
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		s.logger.Warn().Str("error", err.Error()).Msg("invalid request")
		s.write(newErrorResponse(nil, CodeInvalidRequest, "Invalid Request"))
		return false, nil
	}
	if env.isResponse() {
		s.logger.Debug().Str("id", string(env.ID)).Msg("ignoring client response")
		return false, nil
	}
	if env.JSONRPC != jsonrpcVersion || env.Method == "" || !validID(env.ID) {
		id := env.ID
		if !validID(id) {
			id = nil
		}
		s.logger.Warn().Str("method", env.Method).Str("jsonrpc", env.JSONRPC).Msg("invalid request")
		s.write(newErrorResponse(id, CodeInvalidRequest, "Invalid Request"))
		return false, nil
	}

	s.logger.Debug().Str("method", env.Method).Str("id", string(env.ID)).Msg("request received")

	switch env.Method {
	case "shutdown":
		if !env.isNotification() {
			s.write(newResponse(env.ID, struct{}{}))
		}
		s.logger.Info().Msg("shutdown requested")
		return true, nil
	case "exit":
		return true, nil
	case "tools/call":
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return false, err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.callTool(ctx, env, line)
		}()
		return false, nil
	default:
		s.handle(ctx, line)
		return false, nil
	}
}

// callTool answers unexposed tool names with an error result instead of
// mcp-go's protocol error; everything else goes through mcp-go.
func (s *Session) callTool(ctx context.Context, env envelope, line []byte) {
	result, handled, err := s.server.callUnexposed(ctx, env.Params)
	if err != nil {
		s.write(newErrorResponse(env.ID, CodeInvalidRequest, "Invalid Request"))
		return
	}
	if !handled {
		s.handle(ctx, line)
		return
	}
	if env.isNotification() {
		return
	}
	s.write(newResponse(env.ID, result))
}

func (s *Session) handle(ctx context.Context, line []byte) {
	resp := s.server.mcp.HandleMessage(ctx, line)
	if resp == nil {
		return
	}
	s.write(resp)
}

// write encodes v as one line. Concurrent writers never interleave.
func (s *Session) write(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Str("error", err.Error()).Msg("failed to encode response")
		return
	}
	b = append(b, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(b); err != nil {
		s.logger.Error().Str("error", err.Error()).Msg("failed to write response")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

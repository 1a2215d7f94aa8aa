// Package serve exposes a scanner.Core over newline-delimited JSON.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/praetorian-inc/kwmatch/pkg/logging"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
	"github.com/praetorian-inc/kwmatch/pkg/scanner"
)

// Version is the server protocol version
const Version = "2.0.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	metrics *Metrics
	logger  *logging.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		logger:  logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server main loop
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Process requests until input closes or context cancels
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	start := time.Now()
	var ok bool

	switch req.Type {
	case "scan":
		ok = s.handleScan(req.Payload)
	case "scan_batch":
		ok = s.handleScanBatch(req.Payload)
	case "has_match":
		ok = s.handleHasMatch(req.Payload)
	case "replace":
		ok = s.handleReplace(req.Payload)
	case "add":
		ok = s.handleAdd(req.Payload)
	case "delete":
		ok = s.handleDelete(req.Payload)
	case "keywords":
		ok = s.send("keywords", KeywordsData{Keywords: s.core.Keywords()})
	case "stream_open":
		ok = s.handleStreamOpen(req.Payload)
	case "stream_push":
		ok = s.handleStreamPush(req.Payload)
	case "stream_close":
		ok = s.handleStreamClose(req.Payload)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
		return false
	}

	s.metrics.observe(req.Type, ok, time.Since(start).Seconds())
	s.metrics.setState(s.core.Engine().Len(), s.core.Sessions())
	return false
}

func (s *Server) sendReady() {
	s.send("ready", ReadyData{Version: Version, Keywords: s.core.Engine().Len()})
}

// decode unmarshals a payload, answering with an error response on failure.
func (s *Server) decode(reqType string, payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		s.sendError(reqType, err.Error())
		return false
	}
	return true
}

func (s *Server) handleScan(payload json.RawMessage) bool {
	var p ScanPayload
	if !s.decode("scan", payload, &p) {
		return false
	}
	s.metrics.addScanned(len(p.Content))

	if p.Mode != "" {
		mode, err := matcher.ParseMode(p.Mode)
		if err != nil {
			return s.sendError("scan", err.Error())
		}
		hits := s.core.Hits(p.Content, mode)
		s.metrics.addHits(len(hits))
		return s.send("scan", HitsData{Source: p.Source, Hits: hits})
	}

	result, err := s.core.Scan(p.Content, p.Source)
	if err != nil {
		return s.sendError("scan", err.Error())
	}
	s.metrics.addHits(len(result.Matches))
	return s.send("scan", result)
}

func (s *Server) handleScanBatch(payload json.RawMessage) bool {
	var p ScanBatchPayload
	if !s.decode("scan_batch", payload, &p) {
		return false
	}
	for _, item := range p.Items {
		s.metrics.addScanned(len(item.Content))
	}

	result, err := s.core.ScanBatch(p.Items)
	if err != nil {
		return s.sendError("scan_batch", err.Error())
	}
	s.metrics.addHits(result.Total)
	return s.send("scan_batch", result)
}

func (s *Server) handleHasMatch(payload json.RawMessage) bool {
	var p HasMatchPayload
	if !s.decode("has_match", payload, &p) {
		return false
	}
	s.metrics.addScanned(len(p.Content))
	return s.send("has_match", HasMatchData{Match: s.core.HasMatch(p.Content)})
}

func (s *Server) handleReplace(payload json.RawMessage) bool {
	var p ReplacePayload
	if !s.decode("replace", payload, &p) {
		return false
	}
	fn, err := s.core.ReplaceFunc(p.With, p.Mask)
	if err != nil {
		return s.sendError("replace", err.Error())
	}
	s.metrics.addScanned(len(p.Content))
	return s.send("replace", ReplaceData{Output: s.core.Replace(p.Content, fn)})
}

func (s *Server) handleAdd(payload json.RawMessage) bool {
	var p KeywordsPayload
	if !s.decode("add", payload, &p) {
		return false
	}
	n, err := s.core.AddKeywords(p.Dictionary, p.Keywords)
	if err != nil {
		return s.sendError("add", err.Error())
	}
	return s.send("add", MutationData{Changed: n, Keywords: s.core.Engine().Len()})
}

func (s *Server) handleDelete(payload json.RawMessage) bool {
	var p KeywordsPayload
	if !s.decode("delete", payload, &p) {
		return false
	}
	n, err := s.core.DeleteKeywords(p.Dictionary, p.Keywords)
	if err != nil {
		return s.sendError("delete", err.Error())
	}
	return s.send("delete", MutationData{Changed: n, Keywords: s.core.Engine().Len()})
}

func (s *Server) handleStreamOpen(payload json.RawMessage) bool {
	var p StreamOpenPayload
	if len(payload) > 0 && !s.decode("stream_open", payload, &p) {
		return false
	}
	var mode matcher.Mode
	if !p.Replace {
		var err error
		if mode, err = matcher.ParseMode(p.Mode); err != nil {
			return s.sendError("stream_open", err.Error())
		}
	}

	id, err := s.core.OpenStream(scanner.StreamOptions{Mode: mode, Replace: p.Replace, With: p.With, Mask: p.Mask})
	if err != nil {
		return s.sendError("stream_open", err.Error())
	}
	return s.send("stream_open", StreamData{Stream: id})
}

func (s *Server) handleStreamPush(payload json.RawMessage) bool {
	var p StreamPushPayload
	if !s.decode("stream_push", payload, &p) {
		return false
	}
	s.metrics.addScanned(len(p.Chunk))

	out, err := s.core.PushStream(p.Stream, p.Chunk)
	if err != nil {
		return s.sendError("stream_push", err.Error())
	}
	s.metrics.addHits(len(out.Hits))
	return s.send("stream_push", StreamData{Stream: p.Stream, StreamOutput: *out})
}

func (s *Server) handleStreamClose(payload json.RawMessage) bool {
	var p StreamClosePayload
	if !s.decode("stream_close", payload, &p) {
		return false
	}
	out, err := s.core.CloseStream(p.Stream)
	if err != nil {
		return s.sendError("stream_close", err.Error())
	}
	s.metrics.addHits(len(out.Hits))
	return s.send("stream_close", StreamData{Stream: p.Stream, StreamOutput: *out})
}

func (s *Server) send(respType string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return s.sendError(respType, err.Error())
	}
	if err := s.encoder.Encode(Response{Success: true, Type: respType, Data: data}); err != nil {
		s.logger.Warn("writing response", "type", respType, "error", err)
		return false
	}
	return true
}

// sendError always reports false so handlers can return it directly.
func (s *Server) sendError(reqType, msg string) bool {
	if err := s.encoder.Encode(Response{Success: false, Type: reqType, Error: msg}); err != nil {
		s.logger.Warn("writing error response", "type", reqType, "error", err)
	}
	return false
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/biocoder/pkg/codec"
	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/storage"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// maxBodyBytes bounds every request body
const maxBodyBytes = 64 << 20

// Server holds the API server state
type Server struct {
	streams IStreamStore
	coding  IStreamCoder
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(streams IStreamStore, coding IStreamCoder, config ServerConfig, metrics *Metrics) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		streams: streams,
		coding:  coding,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// statusFor maps an error to the HTTP status reported for it
// errInvalidUnit marks a request unit whose framing fields are unusable
var errInvalidUnit = errors.New("invalid unit")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidUnit):
		return http.StatusBadRequest
	case errors.Is(err, coder.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, coder.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, coder.ErrTruncated), errors.Is(err, coder.ErrMalformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, codec.ErrCorrupt), errors.Is(err, codec.ErrShortUnit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrStreamNotFound), errors.Is(err, storage.ErrUnitNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, "Invalid JSON request", http.StatusBadRequest)
		return false
	}
	return true
}

// coderConfig overlays the fields present in raw onto the server defaults
func (s *Server) coderConfig(raw json.RawMessage) (coder.Config, error) {
	cfg := s.config.Coder
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return coder.Config{}, fmt.Errorf("%w: %v", coder.ErrConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return coder.Config{}, err
	}
	return cfg, nil
}

func (s *Server) checkFrames(frames [][]symbol.Symbol) error {
	if s.config.MaxFrameSymbols <= 0 {
		return nil
	}
	for i, f := range frames {
		if len(f) > s.config.MaxFrameSymbols {
			return fmt.Errorf("frame %d has %d symbols, limit is %d", i, len(f), s.config.MaxFrameSymbols)
		}
	}
	return nil
}

func streamID(r *http.Request) (ksuid.KSUID, error) {
	return ksuid.Parse(chi.URLParam(r, "id"))
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleEncode godoc
//
//	@Summary		Encode frames
//	@Description	Code a sequence of frames with one fresh encoder. Units must be decoded in the same order with the same config.
//	@Tags			coding
//	@Accept			json
//	@Produce		json
//	@Param			request	body		EncodeRequest	true	"Frames to encode"
//	@Success		200		{object}	EncodeResponse
//	@Failure		400		{object}	map[string]string
//	@Router			/encode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req EncodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.checkFrames(req.Frames); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg, err := s.coderConfig(req.Config)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	start := time.Now()
	resp, err := s.encodeFrames(cfg, req.Frames)
	s.metrics.RecordCoding(coder.DirectionEncode, resp.Stats, err, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	s.logger.Info("encoded session", "session", resp.Session, "frames", len(resp.Units))
	sendSuccess(w, resp)
}

func (s *Server) encodeFrames(cfg coder.Config, frames [][]symbol.Symbol) (*EncodeResponse, error) {
	resp := &EncodeResponse{
		Session: ksuid.New().String(),
		Units:   make([]CodedUnit, 0, len(frames)),
		Stats:   make([]coder.Stats, 0, len(frames)),
	}

	enc, err := coder.New(cfg, coder.WithLogger(s.logger))
	if err != nil {
		return resp, err
	}
	for i, frame := range frames {
		data, err := enc.Encode(frame)
		if err != nil {
			return resp, fmt.Errorf("frame %d: %w", i, err)
		}
		resp.Units = append(resp.Units, CodedUnit{Symbols: len(frame), Data: data})
		resp.Stats = append(resp.Stats, enc.LastStats())
	}
	return resp, nil
}

// handleDecode godoc
//
//	@Summary		Decode units
//	@Description	Decode the units of one encode session in order
//	@Tags			coding
//	@Accept			json
//	@Produce		json
//	@Param			request	body		DecodeRequest	true	"Units to decode"
//	@Success		200		{object}	DecodeResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/decode [post]
//	@Security		ApiKeyAuth
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cfg, err := s.coderConfig(req.Config)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	start := time.Now()
	resp, err := s.decodeUnits(cfg, req)
	s.metrics.RecordCoding(coder.DirectionDecode, resp.Stats, err, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	sendSuccess(w, resp)
}

func (s *Server) decodeUnits(cfg coder.Config, req DecodeRequest) (*DecodeResponse, error) {
	resp := &DecodeResponse{
		Session: ksuid.New().String(),
		Frames:  make([][]symbol.Symbol, 0, len(req.Units)),
		Stats:   make([]coder.Stats, 0, len(req.Units)),
	}

	dec, err := coder.New(cfg, coder.WithLogger(s.logger))
	if err != nil {
		return resp, err
	}
	for i, unit := range req.Units {
		if unit.Symbols < 0 {
			return resp, fmt.Errorf("%w: unit %d has negative symbol count %d", errInvalidUnit, i, unit.Symbols)
		}
		count := unit.Symbols
		if req.BestEffort && i == len(req.Units)-1 {
			count = -1
		}
		if count > 0 && s.config.MaxFrameSymbols > 0 && count > s.config.MaxFrameSymbols {
			return resp, fmt.Errorf("%w: unit %d claims %d symbols", coder.ErrMalformed, i, count)
		}

		frame, err := dec.Decode(unit.Data, count)
		if err != nil {
			if count < 0 && errors.Is(err, coder.ErrTruncated) {
				resp.Frames = append(resp.Frames, frame)
				resp.Truncated = true
				return resp, nil
			}
			return resp, fmt.Errorf("unit %d: %w", i, err)
		}
		resp.Frames = append(resp.Frames, frame)
		resp.Stats = append(resp.Stats, dec.LastStats())
	}
	return resp, nil
}

// handleCreateStream godoc
//
//	@Summary		Create a stream
//	@Description	Register a stored stream coded with the given config
//	@Tags			streams
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateStreamRequest	true	"Stream"
//	@Success		200		{object}	storage.Stream
//	@Failure		400		{object}	map[string]string
//	@Router			/streams [post]
//	@Security		ApiKeyAuth
func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req CreateStreamRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		sendError(w, "name is required", http.StatusBadRequest)
		return
	}

	cfg, err := s.coderConfig(req.Config)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}

	st, err := s.streams.CreateStream(req.Name, cfg)
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to create stream: %v", err), statusFor(err))
		return
	}

	s.logger.Info("created stream", "stream", st.ID.String(), "name", st.Name)
	sendSuccess(w, st)
}

// handleListStreams godoc
//
//	@Summary		List streams
//	@Tags			streams
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		500	{object}	map[string]string
//	@Router			/streams [get]
//	@Security		ApiKeyAuth
func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.streams.ListStreams()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to list streams: %v", err), http.StatusInternalServerError)
		return
	}
	if streams == nil {
		streams = []*storage.Stream{}
	}
	sendSuccess(w, map[string]interface{}{"streams": streams})
}

// handleGetStream godoc
//
//	@Summary		Get a stream
//	@Tags			streams
//	@Produce		json
//	@Param			id	path		string	true	"Stream id"
//	@Success		200	{object}	storage.Stream
//	@Failure		400	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/streams/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		sendError(w, "Invalid stream id", http.StatusBadRequest)
		return
	}

	st, err := s.streams.GetStream(id)
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	sendSuccess(w, st)
}

// handleDeleteStream godoc
//
//	@Summary		Delete a stream
//	@Tags			streams
//	@Produce		json
//	@Param			id	path		string	true	"Stream id"
//	@Success		200	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/streams/{id} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		sendError(w, "Invalid stream id", http.StatusBadRequest)
		return
	}

	if err := s.coding.DeleteStream(id); err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	sendSuccess(w, map[string]string{"message": "Stream deleted successfully"})
}

// handleAppendFrames godoc
//
//	@Summary		Append frames to a stream
//	@Description	Encode frames with the stream's live encoder and store one unit per frame
//	@Tags			streams
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Stream id"
//	@Param			request	body		AppendFramesRequest	true	"Frames"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	map[string]string
//	@Failure		404		{object}	map[string]string
//	@Router			/streams/{id}/frames [post]
//	@Security		ApiKeyAuth
func (s *Server) handleAppendFrames(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		sendError(w, "Invalid stream id", http.StatusBadRequest)
		return
	}

	var req AppendFramesRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.checkFrames(req.Frames); err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	stats, err := s.coding.AppendFrames(id, req.Frames)
	s.metrics.RecordCoding(coder.DirectionEncode, stats, err, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	sendSuccess(w, map[string]interface{}{"appended": len(stats), "stats": stats})
}

// handleReadFrames godoc
//
//	@Summary		Read frames from a stream
//	@Description	Decode a stored stream and return its frames from sequence number `from`
//	@Tags			streams
//	@Produce		json
//	@Param			id		path		string	true	"Stream id"
//	@Param			from	query		int		false	"First frame"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		404		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/streams/{id}/frames [get]
//	@Security		ApiKeyAuth
func (s *Server) handleReadFrames(w http.ResponseWriter, r *http.Request) {
	id, err := streamID(r)
	if err != nil {
		sendError(w, "Invalid stream id", http.StatusBadRequest)
		return
	}

	var from uint64
	if v := r.URL.Query().Get("from"); v != "" {
		from, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			sendError(w, "Invalid from parameter", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	frames, err := s.coding.ReadFrames(id, from)
	s.metrics.RecordCoding(coder.DirectionDecode, nil, err, time.Since(start))
	if err != nil {
		sendError(w, err.Error(), statusFor(err))
		return
	}
	if frames == nil {
		frames = [][]symbol.Symbol{}
	}
	sendSuccess(w, map[string]interface{}{"from": from, "frames": frames})
}

// handleStats godoc
//
//	@Summary		Get stream store statistics
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		500	{object}	map[string]string
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collectStats()
	if err != nil {
		sendError(w, fmt.Sprintf("Failed to collect stats: %v", err), http.StatusInternalServerError)
		return
	}
	sendSuccess(w, stats)
}

func (s *Server) collectStats() (*StatsResponse, error) {
	streams, err := s.streams.ListStreams()
	if err != nil {
		return nil, err
	}

	out := &StatsResponse{Streams: len(streams)}
	for _, st := range streams {
		out.Units += st.Units
		out.Symbols += st.Symbols
		out.Bytes += st.Bytes
	}
	s.metrics.UpdateStreamStats(out.Streams, out.Units, out.Bytes)
	return out, nil
}

// startMetricsUpdater refreshes the stream gauges until ctx is done
func (s *Server) startMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.collectStats(); err != nil {
				s.logger.Warn("failed to refresh stream metrics", "error", err)
			}
		}
	}
}

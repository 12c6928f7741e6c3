package api

import (
	"encoding/json"
	"log/slog"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/storage"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CodedUnit is one coded frame together with the symbol count the decoder
// needs. Data is base64 in JSON.
type CodedUnit struct {
	Symbols int    `json:"symbols"`
	Data    []byte `json:"data"`
}

// EncodeRequest asks for a sequence of frames to be coded in one session.
// Config fields that are omitted keep the server's defaults.
type EncodeRequest struct {
	Frames [][]symbol.Symbol `json:"frames"`
	Config json.RawMessage   `json:"config,omitempty"`
}

// EncodeResponse holds one unit per frame, in order
type EncodeResponse struct {
	Session string        `json:"session"`
	Units   []CodedUnit   `json:"units"`
	Stats   []coder.Stats `json:"stats"`
}

// DecodeRequest asks for units from one session to be decoded in order. With
// BestEffort the symbol count of the last unit is ignored and it is decoded
// until its stream runs out.
type DecodeRequest struct {
	Units      []CodedUnit     `json:"units"`
	Config     json.RawMessage `json:"config,omitempty"`
	BestEffort bool            `json:"best_effort,omitempty"`
}

// DecodeResponse holds the decoded frames. Truncated marks a last frame
// recovered by a best effort decode.
type DecodeResponse struct {
	Session   string            `json:"session"`
	Frames    [][]symbol.Symbol `json:"frames"`
	Stats     []coder.Stats     `json:"stats"`
	Truncated bool              `json:"truncated,omitempty"`
}

// CreateStreamRequest creates a stored stream
type CreateStreamRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config,omitempty"`
}

// AppendFramesRequest appends frames to a stored stream
type AppendFramesRequest struct {
	Frames [][]symbol.Symbol `json:"frames"`
}

// StatsResponse summarizes the stream store
type StatsResponse struct {
	Streams int    `json:"streams"`
	Units   uint64 `json:"units"`
	Symbols uint64 `json:"symbols"`
	Bytes   uint64 `json:"bytes"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port            int
	Bind            string
	APIKey          string
	MaxFrameSymbols int          // largest accepted frame, 0 for no limit
	Coder           coder.Config // defaults for requests and new streams
	Logger          *slog.Logger
}

var (
	_ IStreamStore = (*storage.StreamStore)(nil)
	_ IStreamCoder = (*storage.StreamCoder)(nil)
)

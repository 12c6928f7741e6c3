// Package coder is the adaptive entropy coding engine. It composes the
// quantizer, the temporal context manager, the redundancy eliminator, the
// neural predictor, the synaptic model and one binary range coder into a
// stateful stream coder.
//
// A unit is one Encode or Decode call. Range coder registers reset per unit;
// frequency tables, context frames, predictor weights and synaptic weights
// persist across units. The decoder must therefore see every unit, in order,
// with an identical Config.
//
// Per position the unit carries, in this order:
//
//	[elision flag]  only when redundancy elimination is on and the memory frame
//	                marks the position eligible
//	kind            6-symbol adaptive table
//	index, index..  one per component, from the value table
//
// Elided positions carry only the flag.
package coder

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ssargent/biocoder/pkg/predictor"
	"github.com/ssargent/biocoder/pkg/quant"
	"github.com/ssargent/biocoder/pkg/rangecoder"
	"github.com/ssargent/biocoder/pkg/redundancy"
	"github.com/ssargent/biocoder/pkg/symbol"
	"github.com/ssargent/biocoder/pkg/temporal"
)

// MaxBestEffortSymbols caps a best-effort decode
const MaxBestEffortSymbols = 1 << 22

// Option configures a Coder
type Option func(*Coder)

// WithLogger sets the logger used for unit level diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coder) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coder encodes or decodes a stream of symbol frames. An instance is bound to
// one direction by its first call and is not safe for concurrent use.
type Coder struct {
	cfg        Config
	quant      *quant.Table
	eliminator *redundancy.Eliminator
	logger     *slog.Logger

	model     *model
	status    Status
	direction Direction
	stats     Stats
	units     uint64
}

// New creates a coder with fresh adaptive state
func New(cfg Config, opts ...Option) (*Coder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	q, err := quant.New(cfg.AlphabetSize, cfg.MinValue, cfg.MaxValue)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	elim, err := redundancy.New(cfg.RedundancyThreshold, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	m, err := newModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	c := &Coder{
		cfg:        cfg,
		quant:      q,
		eliminator: elim,
		logger:     slog.Default(),
		model:      m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the configuration the coder was built with
func (c *Coder) Config() Config { return c.cfg }

// Quantizer returns the quantization table
func (c *Coder) Quantizer() *quant.Table { return c.quant }

// State returns the lifecycle state
func (c *Coder) State() Status { return c.status }

// Direction returns the direction the instance is bound to
func (c *Coder) Direction() Direction { return c.direction }

// Units returns the number of units committed
func (c *Coder) Units() uint64 { return c.units }

// LastStats returns the statistics of the last successful unit
func (c *Coder) LastStats() Stats { return c.stats }

// Snapshot returns a copy of the adaptive state
func (c *Coder) Snapshot() Snapshot { return c.model.snapshot() }

// FrequencyTables returns copies of the kind, value and flag tables
func (c *Coder) FrequencyTables() (kinds, values, flags *rangecoder.FrequencyTable) {
	return c.model.kinds.Clone(), c.model.values.Clone(), c.model.flags.Clone()
}

// Frames returns the context frames held by the temporal manager
func (c *Coder) Frames() []temporal.Frame { return c.model.context.Frames() }

// Reset discards all adaptive state and releases the direction binding
func (c *Coder) Reset() error {
	m, err := newModel(c.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	c.model = m
	c.status = StatusIdle
	c.direction = DirectionNone
	c.stats = Stats{}
	c.units = 0
	return nil
}

func (c *Coder) bind(d Direction) error {
	if c.direction != DirectionNone && c.direction != d {
		return fmt.Errorf("%w: instance is bound to %s", ErrDirection, c.direction)
	}
	c.direction = d
	return nil
}

// Encode codes one frame of symbols into a self-contained unit. Values are
// quantized first; the decoder returns the quantized symbols. An empty frame
// yields an empty unit but still advances the context.
func (c *Coder) Encode(symbols []symbol.Symbol) ([]byte, error) {
	if err := c.bind(DirectionEncode); err != nil {
		return nil, err
	}
	c.status = StatusEncoding

	frame := make([]symbol.Symbol, len(symbols))
	for i, s := range symbols {
		if !s.Kind.Valid() {
			c.status = StatusError
			return nil, fmt.Errorf("%w: symbol %d has unknown kind %d", ErrEncoding, i, s.Kind)
		}
		frame[i] = c.quant.Canonical(s)
	}

	m := c.model.clone()
	before := m.rescales()
	mem := c.memory(m)
	enc := rangecoder.NewEncoder()
	sc := encodeStep{enc: enc}

	reduced, mask := frame, make([]bool, len(frame))
	if c.cfg.EnableRedundancyElimination {
		reduced, mask = c.eliminator.Eliminate(frame, mem)
	}

	stats := Stats{Symbols: len(frame)}
	next := 0
	for i, dropped := range mask {
		if c.cfg.EnableRedundancyElimination && c.eliminator.Eligible(mem, i) {
			flag := 0
			if dropped {
				flag = 1
			}
			if _, err := sc.code(m.flags, flag); err != nil {
				c.status = StatusError
				return nil, fmt.Errorf("%w: flag at %d: %w", ErrEncoding, i, err)
			}
			if dropped {
				stats.Eliminated++
				stats.Patterns.Add(redundancy.Classify(mem.Slot(i).Kind))
				continue
			}
		}

		_, hit, err := c.step(sc, m, reduced[next])
		if err != nil {
			c.status = StatusError
			return nil, fmt.Errorf("%w: symbol at %d: %w", ErrEncoding, i, err)
		}
		next++
		stats.Coded++
		if hit {
			stats.PredictionHits++
		}
	}

	out, err := enc.Finish()
	if err != nil {
		c.status = StatusError
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	c.endFrame(m, frame, stats)
	stats.Bytes = len(out)
	stats.Rescales = m.rescales() - before
	c.commit(m, stats)
	c.status = StatusFinalized

	c.logger.Debug("unit encoded",
		"unit", c.units,
		"symbols", stats.Symbols,
		"coded", stats.Coded,
		"eliminated", stats.Eliminated,
		"bytes", stats.Bytes,
		"hits", stats.PredictionHits)
	return out, nil
}

// Decode reconstructs count symbols from one unit. Units carry no symbol
// count, so the caller supplies it from its framing. A negative count decodes
// until the input is exhausted; the prefix is returned together with an error
// wrapping ErrTruncated and ErrStreamExhausted, and the adaptive state is left
// unchanged since the unit boundary is unknown.
//
// On any error the adaptive state is left as it was before the call.
func (c *Coder) Decode(data []byte, count int) ([]symbol.Symbol, error) {
	if err := c.bind(DirectionDecode); err != nil {
		return nil, err
	}
	c.status = StatusDecoding

	m := c.model.clone()
	before := m.rescales()
	mem := c.memory(m)
	dec := rangecoder.NewDecoder(data)
	sc := decodeStep{dec: dec}

	bestEffort := count < 0
	limit := count
	if bestEffort {
		limit = MaxBestEffortSymbols
	}

	var (
		reduced []symbol.Symbol
		mask    []bool
		stats   Stats
		failure error
	)
	for i := 0; i < limit; i++ {
		if c.cfg.EnableRedundancyElimination && c.eliminator.Eligible(mem, i) {
			flag, err := sc.code(m.flags, 0)
			if err != nil {
				failure = classify(i, err)
				break
			}
			if flag == 1 {
				mask = append(mask, true)
				stats.Eliminated++
				stats.Patterns.Add(redundancy.Classify(mem.Slot(i).Kind))
				continue
			}
		}

		s, hit, err := c.step(sc, m, symbol.Symbol{})
		if err != nil {
			failure = classify(i, err)
			break
		}
		reduced = append(reduced, s)
		mask = append(mask, false)
		stats.Coded++
		if hit {
			stats.PredictionHits++
		}
	}
	if failure == nil && !bestEffort {
		if err := dec.Finish(); err != nil {
			failure = classify(count, err)
		}
	}

	if failure != nil {
		var de *DecodeError
		if bestEffort && errors.As(failure, &de) && de.Kind == ErrTruncated {
			partial, err := c.restore(reduced, mask, mem)
			if err != nil {
				c.status = StatusError
				return nil, err
			}
			c.status = StatusExhausted
			c.logger.Debug("unit decoded best effort", "symbols", len(partial))
			return partial, failure
		}
		c.status = StatusError
		c.logger.Debug("unit decode failed", "error", failure)
		return nil, failure
	}

	frame, err := c.restore(reduced, mask, mem)
	if err != nil {
		c.status = StatusError
		return nil, err
	}

	c.endFrame(m, frame, stats)
	stats.Symbols = len(frame)
	stats.Bytes = len(data)
	stats.Rescales = m.rescales() - before
	c.commit(m, stats)
	c.status = StatusExhausted

	c.logger.Debug("unit decoded",
		"unit", c.units,
		"symbols", stats.Symbols,
		"coded", stats.Coded,
		"eliminated", stats.Eliminated,
		"bytes", stats.Bytes)
	return frame, nil
}

func (c *Coder) restore(reduced []symbol.Symbol, mask []bool, mem *temporal.Memory) ([]symbol.Symbol, error) {
	if !c.cfg.EnableRedundancyElimination {
		return reduced, nil
	}
	frame, err := c.eliminator.Restore(reduced, mask, mem)
	if err != nil {
		return nil, &DecodeError{Kind: ErrMalformed, Position: len(mask), Err: err}
	}
	return frame, nil
}

// memory computes the memory frame for the next unit. No history means no
// position is eligible for elision.
func (c *Coder) memory(m *model) *temporal.Memory {
	if !c.cfg.EnableRedundancyElimination {
		return nil
	}
	mem, err := m.context.ComputeMemory(c.quant)
	if err != nil {
		return nil
	}
	return mem
}

// step codes one symbol through the shared pipeline. want is ignored by the
// decoding side. The returned symbol is the canonical symbol that was coded.
func (c *Coder) step(sc stepper, m *model, want symbol.Symbol) (symbol.Symbol, bool, error) {
	var pred *symbol.Symbol
	if c.cfg.EnableNeuralPrediction {
		p := m.predictor.PredictNext(m.history)
		pred = &p
	}

	k, err := sc.code(m.kinds, int(want.Kind))
	if err != nil {
		return symbol.Symbol{}, false, err
	}
	kind := symbol.Kind(k)

	var boost uint32
	if pred != nil && pred.Kind == kind && c.cfg.EnableSynapticAdaptation {
		boost = m.synaptic.Boost(*pred, m.history, c.cfg.SynapticBoost)
	}

	idx := make([]int, kind.Components())
	for j := range idx {
		if boost > 0 {
			if err := m.values.Boost(c.quant.EncodeIndex(pred.Component(j)), boost); err != nil {
				return symbol.Symbol{}, false, err
			}
		}
		v, err := sc.code(m.values, c.quant.EncodeIndex(want.Component(j)))
		if err != nil {
			return symbol.Symbol{}, false, err
		}
		idx[j] = v
	}

	s := c.quant.FromIndices(kind, idx)
	hit := pred != nil && predictor.Hit(*pred, s, c.quant)
	if c.cfg.EnableSynapticAdaptation {
		m.synaptic.Adapt(s, m.history, pred, hit)
	}
	m.push(s)
	return s, hit, nil
}

// endFrame applies the per-frame updates shared by both directions
func (c *Coder) endFrame(m *model, frame []symbol.Symbol, stats Stats) {
	var confidence float64
	if stats.Coded > 0 {
		confidence = float64(stats.PredictionHits) / float64(stats.Coded)
	}
	m.context.Update(frame, confidence)
	if c.cfg.EnableNeuralPrediction {
		m.predictor.UpdateFromSymbols(frame)
	}
}

func (c *Coder) commit(m *model, stats Stats) {
	c.model = m
	c.stats = stats
	c.units++
}

// stepper codes one table symbol in either direction. The encoding side codes
// sym and returns it; the decoding side ignores sym and returns what it read.
// Either way the table learns the symbol.
type stepper interface {
	code(table *rangecoder.FrequencyTable, sym int) (int, error)
}

type encodeStep struct {
	enc *rangecoder.Encoder
}

func (s encodeStep) code(table *rangecoder.FrequencyTable, sym int) (int, error) {
	if err := s.enc.EncodeSymbol(table, sym); err != nil {
		return 0, err
	}
	return sym, table.Increment(sym)
}

type decodeStep struct {
	dec *rangecoder.Decoder
}

func (s decodeStep) code(table *rangecoder.FrequencyTable, _ int) (int, error) {
	sym, err := s.dec.DecodeSymbol(table)
	if err != nil {
		return 0, err
	}
	return sym, table.Increment(sym)
}

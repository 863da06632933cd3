// Package snapshot persists solver definitions: the configuration-space
// shape, thresholds, free variables, saturation state and every
// registered constraint with its priority, comparisons and active rows.
//
// Right-hand sides are deliberately not persisted: targets are run
// state, re-derived from a goal configuration or trajectory after load.
// Constraint functions are code and cannot be serialized either; Load
// re-binds them by name through a Resolver.
//
// The file format is a small binary frame around a codec-encoded
// payload: magic, version, codec name, compression tag and payload
// sizes, so files remain self-describing across codec and compression
// choices.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kinodyn/cascade"
	"github.com/kinodyn/cascade/constraint"
	"github.com/kinodyn/cascade/linesearch"
	"github.com/kinodyn/cascade/manifold"
	"github.com/kinodyn/cascade/model"
	"github.com/kinodyn/cascade/saturation"
	"github.com/kinodyn/cascade/segment"
)

const (
	// Magic identifies cascade snapshot files (ASCII: "CSC1").
	Magic = 0x43534331
	// Version is the current snapshot format version (v1.0.0).
	Version = 0x00010000
)

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported snapshot version")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
)

// ErrUnknownConstraint indicates a persisted constraint the resolver
// could not bind to a function.
type ErrUnknownConstraint struct {
	Name string
}

func (e *ErrUnknownConstraint) Error() string {
	return fmt.Sprintf("no function registered for constraint %q", e.Name)
}

// Resolver binds persisted constraint names back to their functions.
type Resolver func(name string) (constraint.Function, bool)

type segmentRecord struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

type constraintRecord struct {
	Name        string          `json:"name"`
	Priority    int             `json:"priority"`
	Comparisons []uint8         `json:"comparisons"`
	ActiveRows  []segmentRecord `json:"active_rows"`
}

type record struct {
	Space               string             `json:"space"`
	NQ                  int                `json:"nq"`
	NV                  int                `json:"nv"`
	ErrorThreshold      float64            `json:"error_threshold"`
	InequalityThreshold float64            `json:"inequality_threshold"`
	RankThreshold       float64            `json:"rank_threshold"`
	MaxIterations       int                `json:"max_iterations"`
	LastIsOptional      bool               `json:"last_is_optional"`
	SolveLevelByLevel   bool               `json:"solve_level_by_level"`
	StrictRightHandSide bool               `json:"strict_rhs"`
	FreeVariables       []segmentRecord    `json:"free_variables"`
	Saturation          saturation.State   `json:"saturation"`
	Constraints         []constraintRecord `json:"constraints"`
}

func toSegmentRecords(s segment.Set) []segmentRecord {
	out := make([]segmentRecord, len(s))
	for i, seg := range s {
		out[i] = segmentRecord{Start: seg.Start, Length: seg.Length}
	}
	return out
}

func fromSegmentRecords(recs []segmentRecord) segment.Set {
	out := make(segment.Set, len(recs))
	for i, r := range recs {
		out[i] = segment.NewSegment(r.Start, r.Length)
	}
	return out
}

type saveOptions struct {
	codec       Codec
	compression Compression
}

// SaveOption configures Save.
type SaveOption func(*saveOptions)

// WithCodec selects the payload codec. Default is the package default.
func WithCodec(c Codec) SaveOption {
	return func(o *saveOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCompression selects the payload compression. Default is none.
func WithCompression(c Compression) SaveOption {
	return func(o *saveOptions) { o.compression = c }
}

// Save writes the solver's definition to w.
func Save(w io.Writer, s *cascade.Solver, opts ...SaveOption) error {
	o := saveOptions{codec: Default, compression: CompressionNone}
	for _, opt := range opts {
		opt(&o)
	}

	rec := record{
		Space:               s.Space().Name(),
		NQ:                  s.Space().NQ(),
		NV:                  s.Space().NV(),
		ErrorThreshold:      s.ErrorThreshold(),
		InequalityThreshold: s.InequalityThreshold(),
		RankThreshold:       s.RankThreshold(),
		MaxIterations:       s.MaxIterations(),
		LastIsOptional:      s.LastIsOptional(),
		SolveLevelByLevel:   s.SolveLevelByLevel(),
		StrictRightHandSide: s.StrictRightHandSide(),
		FreeVariables:       toSegmentRecords(s.FreeVariables()),
		Saturation:          s.SaturationPolicy().State(),
	}
	for _, e := range s.Entries() {
		comps := e.Constraint.Comparisons()
		cr := constraintRecord{
			Name:        e.Constraint.Function().Name(),
			Priority:    e.Priority,
			Comparisons: make([]uint8, len(comps)),
			ActiveRows:  toSegmentRecords(e.Constraint.ActiveRows()),
		}
		for i, c := range comps {
			cr.Comparisons[i] = uint8(c)
		}
		rec.Constraints = append(rec.Constraints, cr)
	}

	payload, err := o.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	compressed, applied, err := compress(payload, o.compression)
	if err != nil {
		return err
	}

	name := []byte(o.codec.Name())
	header := make([]byte, 0, 16+len(name))
	header = binary.LittleEndian.AppendUint32(header, Magic)
	header = binary.LittleEndian.AppendUint32(header, Version)
	header = append(header, uint8(len(name)))
	header = append(header, name...)
	header = append(header, uint8(applied))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(payload)))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(compressed)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("write snapshot payload: %w", err)
	}
	return nil
}

type loadOptions struct {
	kinematics model.Kinematics
	lineSearch linesearch.Policy
	extra      []cascade.Option
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithKinematics supplies the kinematic model required to restore a
// device saturation policy.
func WithKinematics(m model.Kinematics) LoadOption {
	return func(o *loadOptions) { o.kinematics = m }
}

// WithLineSearch sets the line-search policy of the restored solver.
// Policies are code and are not persisted.
func WithLineSearch(p linesearch.Policy) LoadOption {
	return func(o *loadOptions) { o.lineSearch = p }
}

// WithSolverOptions appends raw solver options applied after the
// recorded ones.
func WithSolverOptions(opts ...cascade.Option) LoadOption {
	return func(o *loadOptions) { o.extra = append(o.extra, opts...) }
}

// Load reads a snapshot from r and rebuilds the solver over space,
// binding constraint functions through resolve. Right-hand sides start
// neutral; restore them from a configuration or trajectory.
func Load(r io.Reader, space manifold.Space, resolve Resolver, opts ...LoadOption) (*cascade.Solver, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	var fixed [9]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if binary.LittleEndian.Uint32(fixed[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(fixed[4:8]) != Version {
		return nil, ErrInvalidVersion
	}
	name := make([]byte, fixed[8])
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("read codec name: %w", err)
	}
	var tail [9]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	compression := Compression(tail[0])
	uncompressedSize := int(binary.LittleEndian.Uint32(tail[1:5]))
	compressedSize := int(binary.LittleEndian.Uint32(tail[5:9]))

	codec, ok := ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("read snapshot payload: %w", err)
	}
	payload, err := decompress(compressed, compression, uncompressedSize)
	if err != nil {
		return nil, err
	}

	var rec record
	if err := codec.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if rec.NQ != space.NQ() {
		return nil, &cascade.ErrDimensionMismatch{Expected: rec.NQ, Actual: space.NQ()}
	}
	if rec.NV != space.NV() {
		return nil, &cascade.ErrDimensionMismatch{Expected: rec.NV, Actual: space.NV()}
	}

	sat, err := saturation.FromState(rec.Saturation, o.kinematics)
	if err != nil {
		return nil, err
	}
	solverOpts := []cascade.Option{
		cascade.WithErrorThreshold(rec.ErrorThreshold),
		cascade.WithInequalityThreshold(rec.InequalityThreshold),
		cascade.WithRankThreshold(rec.RankThreshold),
		cascade.WithMaxIterations(rec.MaxIterations),
		cascade.WithLastIsOptional(rec.LastIsOptional),
		cascade.WithSolveLevelByLevel(rec.SolveLevelByLevel),
		cascade.WithStrictRightHandSide(rec.StrictRightHandSide),
		cascade.WithFreeVariables(fromSegmentRecords(rec.FreeVariables)),
		cascade.WithSaturation(sat),
	}
	if o.lineSearch != nil {
		solverOpts = append(solverOpts, cascade.WithLineSearch(o.lineSearch))
	}
	solverOpts = append(solverOpts, o.extra...)

	s := cascade.New(space, solverOpts...)
	for _, cr := range rec.Constraints {
		f, ok := resolve(cr.Name)
		if !ok {
			return nil, &ErrUnknownConstraint{Name: cr.Name}
		}
		comps := make([]constraint.Comparison, len(cr.Comparisons))
		for i, c := range cr.Comparisons {
			comps[i] = constraint.Comparison(c)
		}
		c := constraint.New(f,
			constraint.WithComparisons(comps),
			constraint.WithActiveRows(fromSegmentRecords(cr.ActiveRows)),
		)
		if err := s.Add(c, cr.Priority); err != nil {
			return nil, err
		}
	}
	return s, nil
}

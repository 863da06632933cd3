// Package model declares the narrow kinematic-device contract consumed by
// the device-derived saturation policy, plus a plain in-memory
// implementation for tests and simple robots.
package model

import "fmt"

// Kinematics describes a jointed device: per-joint configuration and
// tangent layout, position bounds, and an extra free-dimension block
// appended after the joints.
type Kinematics interface {
	// Name identifies the device. Used by persistence records.
	Name() string

	// NQ is the total configuration dimension, extra dimensions included.
	NQ() int

	// NV is the total tangent dimension, extra dimensions included.
	NV() int

	// NumJoints returns the number of joints.
	NumJoints() int

	// JointNQ returns the configuration size of joint i.
	JointNQ(i int) int

	// JointNV returns the tangent size of joint i.
	JointNV(i int) int

	// JointIdxQ returns the configuration offset of joint i.
	JointIdxQ(i int) int

	// JointIdxV returns the tangent offset of joint i.
	JointIdxV(i int) int

	// PositionLower and PositionUpper bound configuration index iq.
	PositionLower(iq int) float64
	PositionUpper(iq int) float64

	// VelocityBound returns the symmetric velocity limit of tangent
	// index iv.
	VelocityBound(iv int) float64

	// ExtraDim is the size of the extra free-dimension block.
	ExtraDim() int

	// ExtraLower and ExtraUpper bound extra dimension k.
	ExtraLower(k int) float64
	ExtraUpper(k int) float64
}

type joint struct {
	nq, nv     int
	idxQ, idxV int
	lower      []float64
	upper      []float64
	velocity   []float64
}

// Simple is an in-memory Kinematics implementation built joint by joint.
type Simple struct {
	name       string
	joints     []joint
	nq, nv     int
	extraLower []float64
	extraUpper []float64
}

// NewSimple returns an empty device named name.
func NewSimple(name string) *Simple {
	return &Simple{name: name}
}

// AddJoint appends a joint with the given configuration and tangent
// sizes and per-configuration-index position bounds. Velocity limits
// default to +Inf-free semantics via a large bound when vel is nil.
func (s *Simple) AddJoint(nq, nv int, lower, upper, vel []float64) *Simple {
	if len(lower) != nq || len(upper) != nq {
		panic(fmt.Sprintf("model: joint bounds must have length %d", nq))
	}
	if vel == nil {
		vel = make([]float64, nv)
		for i := range vel {
			vel[i] = 1e12
		}
	}
	s.joints = append(s.joints, joint{
		nq: nq, nv: nv,
		idxQ:     s.nq,
		idxV:     s.nv,
		lower:    append([]float64(nil), lower...),
		upper:    append([]float64(nil), upper...),
		velocity: append([]float64(nil), vel...),
	})
	s.nq += nq
	s.nv += nv
	return s
}

// SetExtra defines the extra free-dimension block bounds.
func (s *Simple) SetExtra(lower, upper []float64) *Simple {
	if len(lower) != len(upper) {
		panic("model: extra bounds must have equal length")
	}
	s.extraLower = append([]float64(nil), lower...)
	s.extraUpper = append([]float64(nil), upper...)
	return s
}

func (s *Simple) Name() string        { return s.name }
func (s *Simple) NQ() int             { return s.nq + len(s.extraLower) }
func (s *Simple) NV() int             { return s.nv + len(s.extraLower) }
func (s *Simple) NumJoints() int      { return len(s.joints) }
func (s *Simple) JointNQ(i int) int   { return s.joints[i].nq }
func (s *Simple) JointNV(i int) int   { return s.joints[i].nv }
func (s *Simple) JointIdxQ(i int) int { return s.joints[i].idxQ }
func (s *Simple) JointIdxV(i int) int { return s.joints[i].idxV }

func (s *Simple) PositionLower(iq int) float64 {
	j, off := s.locate(iq)
	return s.joints[j].lower[off]
}

func (s *Simple) PositionUpper(iq int) float64 {
	j, off := s.locate(iq)
	return s.joints[j].upper[off]
}

func (s *Simple) VelocityBound(iv int) float64 {
	for _, j := range s.joints {
		if iv >= j.idxV && iv < j.idxV+j.nv {
			return j.velocity[iv-j.idxV]
		}
	}
	return 1e12
}

func (s *Simple) ExtraDim() int { return len(s.extraLower) }

func (s *Simple) ExtraLower(k int) float64 { return s.extraLower[k] }
func (s *Simple) ExtraUpper(k int) float64 { return s.extraUpper[k] }

func (s *Simple) locate(iq int) (joint int, offset int) {
	for i, j := range s.joints {
		if iq >= j.idxQ && iq < j.idxQ+j.nq {
			return i, iq - j.idxQ
		}
	}
	panic(fmt.Sprintf("model: configuration index %d out of range", iq))
}

// Package saturation implements the bound-clamping strategies applied to
// candidate configurations. A policy clamps a configuration into its
// feasible box and reports, per tangent index, which side of the box was
// hit; the solver then suppresses Jacobian columns whose correction would
// push further into the violated bound.
package saturation

import (
	"fmt"

	"github.com/kinodyn/cascade/model"
)

// Policy clamps configurations. Saturate writes the clamped configuration
// into qSat (same length as q, may alias it) and per-tangent-index flags
// into sat: -1 lower bound hit, +1 upper bound hit, 0 free. It returns
// whether anything saturated.
type Policy interface {
	Saturate(q, qSat []float64, sat []int8) bool

	// State captures the policy for persistence.
	State() State
}

// State is the serializable form of a policy.
type State struct {
	Kind  string    `json:"kind"`
	Lower []float64 `json:"lower,omitempty"`
	Upper []float64 `json:"upper,omitempty"`
	Model string    `json:"model,omitempty"`
}

// Policy kind tags stored in persisted records.
const (
	KindBase   = "base"
	KindBounds = "bounds"
	KindDevice = "device"
)

// clamp pins v into [lb, ub], reporting the saturation sign.
func clamp(lb, ub, v float64, vsat *float64, s *int8) bool {
	switch {
	case v <= lb:
		*vsat = lb
		*s = -1
		return true
	case v >= ub:
		*vsat = ub
		*s = 1
		return true
	default:
		*vsat = v
		*s = 0
		return false
	}
}

// Base never saturates.
type Base struct{}

func (Base) Saturate(q, qSat []float64, sat []int8) bool {
	copy(qSat, q)
	for i := range sat {
		sat[i] = 0
	}
	return false
}

func (Base) State() State { return State{Kind: KindBase} }

// Bounds clamps every configuration index into a fixed box. It assumes a
// flat configuration space (nq == nv): flag index i corresponds to
// configuration index i.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NewBounds returns a Bounds policy over [lower, upper].
func NewBounds(lower, upper []float64) *Bounds {
	return &Bounds{
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
	}
}

func (b *Bounds) Saturate(q, qSat []float64, sat []int8) bool {
	saturated := false
	for i := range q {
		if clamp(b.Lower[i], b.Upper[i], q[i], &qSat[i], &sat[i]) {
			saturated = true
		}
	}
	return saturated
}

func (b *Bounds) State() State {
	return State{
		Kind:  KindBounds,
		Lower: append([]float64(nil), b.Lower...),
		Upper: append([]float64(nil), b.Upper...),
	}
}

// Device derives bounds from a kinematic model's per-joint position
// limits plus its extra free-dimension block. Configuration indices map
// to tangent flag indices via iv = idxV + min(j, nv-1), which handles
// joints whose tangent dimension is smaller than their configuration
// dimension.
type Device struct {
	Model model.Kinematics
}

// NewDevice returns a Device policy over m.
func NewDevice(m model.Kinematics) *Device {
	return &Device{Model: m}
}

func (d *Device) Saturate(q, qSat []float64, sat []int8) bool {
	m := d.Model
	saturated := false

	for i := 0; i < m.NumJoints(); i++ {
		nq, nv := m.JointNQ(i), m.JointNV(i)
		idxQ, idxV := m.JointIdxQ(i), m.JointIdxV(i)
		for j := 0; j < nq; j++ {
			iq := idxQ + j
			k := j
			if k > nv-1 {
				k = nv - 1
			}
			iv := idxV + k
			if clamp(m.PositionLower(iq), m.PositionUpper(iq), q[iq], &qSat[iq], &sat[iv]) {
				saturated = true
			}
		}
	}

	nqJoints := m.NQ() - m.ExtraDim()
	nvJoints := m.NV() - m.ExtraDim()
	for k := 0; k < m.ExtraDim(); k++ {
		iq := nqJoints + k
		iv := nvJoints + k
		if clamp(m.ExtraLower(k), m.ExtraUpper(k), q[iq], &qSat[iq], &sat[iv]) {
			saturated = true
		}
	}
	return saturated
}

func (d *Device) State() State {
	return State{Kind: KindDevice, Model: d.Model.Name()}
}

// FromState rebuilds a policy from its persisted form. Device states need
// the kinematic model resolved by the caller; m is ignored otherwise.
func FromState(st State, m model.Kinematics) (Policy, error) {
	switch st.Kind {
	case KindBase, "":
		return Base{}, nil
	case KindBounds:
		return NewBounds(st.Lower, st.Upper), nil
	case KindDevice:
		if m == nil {
			return nil, fmt.Errorf("saturation: device policy %q needs a kinematic model", st.Model)
		}
		return NewDevice(m), nil
	default:
		return nil, fmt.Errorf("saturation: unknown policy kind %q", st.Kind)
	}
}

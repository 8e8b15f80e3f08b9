// Package nat classifies the NAT in front of a host by exchanging
// fixed-format UDP probes with two rendezvous servers and comparing the
// externally observed endpoints each server reports back.
package nat

// Type is a NAT behavior class.
//
// The five classes are ordered from most to least permissive; F means
// the test could not reach a conclusion (typically all probes were
// swallowed before both servers reported an endpoint).
type Type int

const (
	// TypeA is a full-cone NAT: stable port mapping, inbound allowed
	// from any external host and port.
	TypeA Type = iota
	// TypeB is a restricted-cone NAT: stable port mapping, inbound
	// filtered by destination history.
	TypeB
	// TypeC is a symmetric NAT whose per-destination port allocation
	// advances by a predictable increment.
	TypeC
	// TypeD is a symmetric NAT with independent, unpredictable
	// per-destination port allocation.
	TypeD
	// TypeF means the test was inconclusive or the network unavailable.
	TypeF
)

// String returns the Nintendo-convention single-letter class.
func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeB:
		return "B"
	case TypeC:
		return "C"
	case TypeD:
		return "D"
	case TypeF:
		return "F"
	default:
		return "Unknown"
	}
}

// Nintendo returns the class in Nintendo Switch labeling (A-F).
func (t Type) Nintendo() string {
	return t.String()
}

// Sony returns the class in Sony PlayStation labeling (1-3, or "-"
// when unavailable).
func (t Type) Sony() string {
	switch t {
	case TypeA:
		return "1"
	case TypeB:
		return "2"
	case TypeC, TypeD:
		return "3"
	default:
		return "-"
	}
}

// Microsoft returns the class in Microsoft Xbox labeling.
func (t Type) Microsoft() string {
	switch t {
	case TypeA:
		return "Open"
	case TypeB:
		return "Moderate"
	case TypeC, TypeD:
		return "Strict"
	default:
		return "Unavailable"
	}
}

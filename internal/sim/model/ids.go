package model

// Handles are plain strings so they can be logged, digested and stored without translation.
type (
	EntityID   string
	AgentID    string
	StationID  string
	FacilityID string
	ItemKind   string
)

// Transform is a resolved position/rotation pair.
type Transform struct {
	Pos Vec3
	Rot Quat
}

// Anchor is a non-owning reference to something with a transform that may go away.
// Transform reports ok=false once the referent is gone; callers must stop using it.
type Anchor interface {
	Transform() (Transform, bool)
}

// StaticAnchor never becomes invalid.
type StaticAnchor Transform

func (s StaticAnchor) Transform() (Transform, bool) { return Transform(s), true }

// AnchorFunc adapts a func to Anchor.
type AnchorFunc func() (Transform, bool)

func (f AnchorFunc) Transform() (Transform, bool) { return f() }

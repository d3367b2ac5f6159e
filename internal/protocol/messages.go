package protocol

import "factorysim.ai/internal/sim/events"

// Client roles.
const (
	RoleObserver = "observer"
	RolePlayer   = "player"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Role            string `json:"role"`
	Name            string `json:"name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	RunID           string         `json:"run_id"`
	AgentID         string         `json:"agent_id,omitempty"`
	TickRateHz      int            `json:"tick_rate_hz"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Items      string `json:"items"`
	Facilities string `json:"facilities"`
	Agents     string `json:"agents"`
	Tuning     string `json:"tuning,omitempty"`
}

// Input actions. An empty action only updates the movement direction.
const (
	ActionMove            = ""
	ActionLevelUpFacility = "LEVEL_UP_FACILITY"
	ActionLevelUpAgent    = "LEVEL_UP_AGENT"
	ActionPickUp          = "PICK_UP"
	ActionDespawnAgent    = "DESPAWN_AGENT"
)

// INPUT (client -> server)
type InputMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Direction       [3]float64 `json:"direction"`
	Action          string     `json:"action,omitempty"`
	Target          string     `json:"target,omitempty"`
}

// FRAME (server -> client)
type FrameMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	WorldID         string          `json:"world_id"`
	Tick            uint64          `json:"tick"`
	Facilities      []FacilityFrame `json:"facilities"`
	Agents          []AgentFrame    `json:"agents"`
	Pools           []PoolFrame     `json:"pools,omitempty"`
	Events          []events.Event  `json:"events,omitempty"`
}

type FacilityFrame struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	Level          int            `json:"level"`
	ProductionTime float64        `json:"production_time"`
	Capacity       int            `json:"capacity"`
	Queue          int            `json:"queue"`
	Produced       int            `json:"produced"`
	Pending        int            `json:"pending"`
	Broken         string         `json:"broken,omitempty"`
	Stations       []StationFrame `json:"stations"`
}

type StationFrame struct {
	ID         string  `json:"id"`
	Category   string  `json:"category"`
	Workable   bool    `json:"workable"`
	ReservedBy string  `json:"reserved_by,omitempty"`
	Occupant   string  `json:"occupant,omitempty"`
	Phase      string  `json:"phase,omitempty"`
	Progress   float64 `json:"progress"`
	Count      int     `json:"count,omitempty"`
}

type AgentFrame struct {
	ID      string     `json:"id"`
	Kind    string     `json:"kind"`
	State   string     `json:"state"`
	Pos     [3]float64 `json:"pos"`
	Level   int        `json:"level"`
	Stack   []string   `json:"stack"`
	Target  string     `json:"target,omitempty"`
	Working bool       `json:"working"`
}

type PoolFrame struct {
	Kind   string `json:"kind"`
	Size   int    `json:"size"`
	Active int    `json:"active"`
}

// EVENT_BATCH_REQ (client -> server)
type EventBatchReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	SinceCursor     int64  `json:"since_cursor"`
	Limit           int    `json:"limit"`
	EventType       string `json:"event_type,omitempty"`
}

type EventBatchItem struct {
	Cursor int64        `json:"cursor"`
	Event  events.Event `json:"event"`
}

// EVENT_BATCH (server -> client)
type EventBatchMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	ReqID           string           `json:"req_id"`
	Events          []EventBatchItem `json:"events"`
	NextCursor      int64            `json:"next_cursor"`
}

// Package protocol holds the wire-level contract shared by the admin API,
// the observer stream and the admin CLI: error codes, the admin request
// body and JSON Schema validation.
package protocol

import "encoding/json"

// Message types on the observer stream.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
	TypeChanges   = "CHANGES"

	TypeChunkVoxels = "CHUNK_VOXELS"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// AdminRequest is the POST body of the source admin endpoints. Strength
// applies to register, Size to burst (0 means strength-scaled).
type AdminRequest struct {
	Pos      [3]int `json:"pos"`
	Strength int    `json:"strength,omitempty"`
	Size     int    `json:"size,omitempty"`
}

// DecodeAdminRequest validates b against the admin request schema before
// decoding it.
func DecodeAdminRequest(b []byte) (AdminRequest, error) {
	var r AdminRequest
	if err := Validate(SchemaAdminRequest, b); err != nil {
		return r, err
	}
	err := json.Unmarshal(b, &r)
	return r, err
}

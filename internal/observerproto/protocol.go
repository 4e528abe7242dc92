package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Changes streams every voxel write as CHANGES messages.
	Changes bool `json:"changes"`
	// FrontierLimit caps frontier positions per source in TICK messages.
	// 0 sends counts only.
	FrontierLimit int `json:"frontier_limit,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
	BlockPalette    []string    `json:"block_palette"`
}

type WorldParams struct {
	TickRateHz          int    `json:"tick_rate_hz"`
	ChunkSize           [3]int `json:"chunk_size"`
	Height              int    `json:"height"`
	Seed                int64  `json:"seed"`
	ChunkRadius         int    `json:"chunk_radius"`
	SpreadIntervalTicks int    `json:"spread_interval_ticks"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Sources []SourceState `json:"sources"`
	Cycle   *CycleSummary `json:"cycle,omitempty"`
	Changes int           `json:"changes"`
}

type SourceState struct {
	Center    [3]int   `json:"center"`
	Strength  int      `json:"strength"`
	MaxRadius int      `json:"max_radius"`
	Frontier  int      `json:"frontier"`
	LastTick  uint64   `json:"last_tick"`
	Members   [][3]int `json:"members,omitempty"`
}

// CycleSummary is present on ticks that ran a processing cycle.
type CycleSummary struct {
	Processed int `json:"processed"`
	Spread    int `json:"spread"`
	Matured   int `json:"matured"`
	Pruned    int `json:"pruned"`
	Removed   int `json:"removed"`
	Skipped   int `json:"skipped"`
}

// Server -> Client. Voxel writes made during one tick.
type ChangesMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Changes         []BlockChange `json:"changes"`
}

type BlockChange struct {
	Pos    [3]int `json:"pos"`
	From   string `json:"from"`
	To     string `json:"to"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

// EncodingPal16RLE is base64 of uvarint (palette id, run) pairs over the
// chunk's blocks, x fastest, then z, then y.
const EncodingPal16RLE = "PAL16_RLE_XZY"

// HTTP response for GET /admin/v1/observer/chunk.
type ChunkVoxelsMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	CX              int      `json:"cx"`
	CZ              int      `json:"cz"`
	Height          int      `json:"height"`
	Encoding        string   `json:"encoding"`
	Palette         []string `json:"palette"`
	Data            string   `json:"data"`
}

package signaling

// Envelope is the websocket frame format in both directions.
//
// Server-to-client call events use the event name ("call:incoming", ...) as Op and the
// call view as Data. Seq increases monotonically per node so clients can spot gaps.
type Envelope struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

const (
	OpReady        = "ready"
	OpHeartbeat    = "heartbeat"
	OpHeartbeatAck = "heartbeat_ack"
)

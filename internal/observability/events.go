package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// WSEvent describes a websocket subscriber lifecycle event.
type WSEvent struct {
	WS       WSDetails  `json:"ws"`
	Identity WSIdentity `json:"identity"`
}

type WSDetails struct {
	Kind       string `json:"kind"`
	Key        string `json:"key"`
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

type WSIdentity struct {
	UserID   string `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

func NewWSEnvelope(event WSEvent) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event.WS.Event,
		Payload:   event,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

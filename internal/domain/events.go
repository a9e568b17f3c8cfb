package domain

// Handshake is the first message a realtime client sends after the
// websocket upgrade. The user id is taken at face value; it scopes the
// connection, it is not a credential.
type Handshake struct {
	ClientType string `json:"clientType"`
	Version    string `json:"version"`
	UserID     string `json:"userId"`
}

// SubscribeRequest replaces the connection's entire instrument interest
// list. Subscribing is a wholesale reset, not an incremental merge.
type SubscribeRequest struct {
	Type        string   `json:"type"`
	Instruments []string `json:"instruments"`
}

// QuoteUpdateBatch is the outbound realtime event: one batched message per
// relay tick carrying the snapshots for the subset of instruments the
// receiving connection is subscribed to.
type QuoteUpdateBatch struct {
	Type   string  `json:"type"`
	Quotes []Quote `json:"quotes"`
}

const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeQuoteUpdate = "quote_update"
)

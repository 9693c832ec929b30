// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the table socket.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidTableIDError = 3003 // Target table was closed or evicted while the socket was open.
)

// Subprotocol is the only WebSocket subprotocol the table socket speaks.
const Subprotocol = "rummy"

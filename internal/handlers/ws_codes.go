// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby stream handlers.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Token passed on the upgrade request was invalid or expired.
)

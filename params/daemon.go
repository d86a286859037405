package params

import "fmt"

// WebDaemonConfig configures the HTTP/websocket daemon.
type WebDaemonConfig struct {
	NetAddr string
	NetPort int

	// DataDir is the root for the bbolt store and route files.
	DataDir string

	// AuthToken guards the session-control and ingest endpoints.
	// Empty disables authentication (local development).
	AuthToken string

	// UserID is the identity stamped onto sessions this daemon runs.
	// The daemon tracks for one user at a time.
	UserID string
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		NetAddr: "localhost",
		NetPort: 3987,
		DataDir: DefaultDatadirRoot,
	}
}

func (c *WebDaemonConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.NetAddr, c.NetPort)
}

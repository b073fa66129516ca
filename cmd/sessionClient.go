package cmd

// sessionClient is a minimal interface to obtain a command session. It lets
// tests substitute in-memory transports for *ssh.Client.
type sessionClient interface {
	NewSession() (session, error)
}

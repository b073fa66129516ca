package cmd

// session runs one command and closes. Output streams stay separated:
// os-release fields, guest address tokens, and API probe results are parsed
// from stdout verbatim and must not be polluted by stderr chatter.
type session interface {
	execute(cmd string) (stdout, stderr []byte, err error)
	Close() error
}

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sshOverrides captures the subset of OpenSSH command-line options that
// manifest extra_args lists may carry. Fleet manifests predate this tool and
// were written for the OpenSSH client, so the common flags keep working;
// anything outside the subset is a hard error rather than a silent drop.
// Zero values mean "not specified".
type sshOverrides struct {
	port            int
	user            string
	identityFile    string
	connectTimeout  time.Duration
	insecureHostKey *bool
	knownHostsFile  string
}

// parseSSHArgs interprets extra_args tokens. Recognized: -p, -i, -l in split
// or joined form, and -o with BatchMode, ConnectTimeout,
// StrictHostKeyChecking, or UserKnownHostsFile. BatchMode is accepted and
// ignored; every session here is non-interactive already.
func parseSSHArgs(args []string) (sshOverrides, error) {
	var o sshOverrides
	for i := 0; i < len(args); i++ {
		arg := args[i]
		flag, joinedValue := arg, ""
		joined := false
		if len(arg) > 2 && strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			flag, joinedValue, joined = arg[:2], arg[2:], true
		}
		takeValue := func() (string, error) {
			if joined {
				return joinedValue, nil
			}
			i++
			if i >= len(args) {
				return "", fmt.Errorf("ssh argument %s is missing its value", flag)
			}
			return args[i], nil
		}
		switch flag {
		case "-p":
			v, err := takeValue()
			if err != nil {
				return o, err
			}
			port, convErr := strconv.Atoi(v)
			if convErr != nil || port < 1 || port > 65535 {
				return o, fmt.Errorf("invalid ssh port %q", v)
			}
			o.port = port
		case "-i":
			v, err := takeValue()
			if err != nil {
				return o, err
			}
			o.identityFile = expandUser(v)
		case "-l":
			v, err := takeValue()
			if err != nil {
				return o, err
			}
			o.user = v
		case "-o":
			v, err := takeValue()
			if err != nil {
				return o, err
			}
			if err := o.applyOption(v); err != nil {
				return o, err
			}
		default:
			return o, fmt.Errorf("unsupported ssh argument %q", arg)
		}
	}
	return o, nil
}

func (o *sshOverrides) applyOption(opt string) error {
	key, value, found := strings.Cut(opt, "=")
	if !found {
		return fmt.Errorf("unsupported ssh option %q", opt)
	}
	switch {
	case strings.EqualFold(key, "BatchMode"):
		// Always non-interactive; nothing to do.
	case strings.EqualFold(key, "ConnectTimeout"):
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 0 {
			return fmt.Errorf("invalid ConnectTimeout %q", value)
		}
		o.connectTimeout = time.Duration(secs) * time.Second
	case strings.EqualFold(key, "StrictHostKeyChecking"):
		switch strings.ToLower(value) {
		case "no", "off":
			insecure := true
			o.insecureHostKey = &insecure
		case "yes":
			insecure := false
			o.insecureHostKey = &insecure
		default:
			return fmt.Errorf("unsupported StrictHostKeyChecking value %q", value)
		}
	case strings.EqualFold(key, "UserKnownHostsFile"):
		// The /dev/null idiom disables host-key verification.
		if value == "/dev/null" {
			insecure := true
			o.insecureHostKey = &insecure
		} else {
			o.knownHostsFile = expandUser(value)
		}
	default:
		return fmt.Errorf("unsupported ssh option %q", key)
	}
	return nil
}

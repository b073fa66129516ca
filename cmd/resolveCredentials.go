package cmd

import (
	"fmt"
	"strings"
)

// credentials carries a resolved API token identity and secret. The values
// are never embedded in errors or log output; only the environment variable
// names travel through reporting.
type credentials struct {
	tokenID string
	secret  string
}

// credentialError reports which environment variables a host still needs.
type credentialError struct {
	host    string
	missing []string
}

func (e *credentialError) Error() string {
	quoted := make([]string, len(e.missing))
	for i, name := range e.missing {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	noun := "environment variable"
	if len(quoted) > 1 {
		noun = "environment variables"
	}
	return fmt.Sprintf("host %q requires %s %s to be set", e.host, noun, strings.Join(quoted, " and "))
}

// resolveCredentials reads the host's API token pair from the process
// environment. Unset and empty both count as missing, and all missing names
// are reported together so a single verify round surfaces the complete fix.
func resolveCredentials(cfg hostConfig) (credentials, error) {
	var creds credentials
	var missing []string
	if v, ok := lookupEnvFunc(cfg.apiTokenEnv); ok && v != "" {
		creds.tokenID = v
	} else {
		missing = append(missing, cfg.apiTokenEnv)
	}
	if v, ok := lookupEnvFunc(cfg.apiSecretEnv); ok && v != "" {
		creds.secret = v
	} else {
		missing = append(missing, cfg.apiSecretEnv)
	}
	if len(missing) > 0 {
		return credentials{}, &credentialError{host: cfg.name, missing: missing}
	}
	return creds, nil
}

package reportrunner

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// resolveCredential turns a credential reference into the password it points to.
// An empty reference means no password.
func resolveCredential(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}

	scheme, target, ok := strings.Cut(ref, ":")
	if !ok || strings.TrimSpace(target) == "" {
		return "", errors.New("credential reference must be env:NAME or file:PATH")
	}
	target = strings.TrimSpace(target)

	switch strings.ToLower(scheme) {
	case "env":
		v, ok := os.LookupEnv(target)
		if !ok {
			return "", fmt.Errorf("credential variable %s is not set", target)
		}
		return v, nil
	case "file":
		raw, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("read credential file: %w", err)
		}
		return strings.TrimRight(string(raw), "\r\n"), nil
	default:
		return "", fmt.Errorf("unsupported credential reference scheme %q (expected env or file)", scheme)
	}
}

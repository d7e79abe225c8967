package reportrunner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

type resetOptions struct {
	yes    bool
	dryRun bool
}

// resetHistory removes the history file, asking on in/out unless opts.yes.
func resetHistory(in io.Reader, out io.Writer, path string, opts resetOptions) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("no history file configured")
	}

	if !opts.yes && !opts.dryRun {
		ok, err := confirmReset(in, out, path)
		if err != nil {
			return err
		}
		if !ok {
			_, err := fmt.Fprintln(out, "Reset cancelled.")
			return err
		}
	}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		_, err = fmt.Fprintf(out, "History already missing (%s)\n", path)
		return err
	case err != nil:
		return fmt.Errorf("check history file: %w", err)
	}

	if opts.dryRun {
		_, err = fmt.Fprintf(out, "Dry run: would remove history (%s)\n", path)
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove history file: %w", err)
	}
	_, err = fmt.Fprintf(out, "Removed history (%s)\n", path)
	return err
}

func confirmReset(in io.Reader, out io.Writer, path string) (bool, error) {
	if _, err := fmt.Fprintf(out, "Delete run history %s? [Y/n]: ", path); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

package reportrunner

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Report     string    `json:"report"`
	Procedure  string    `json:"procedure"`
	Args       []int64   `json:"args,omitempty"`
	Rows       int       `json:"rows"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

func historyRecorder(logger *slog.Logger, path string) func(HistoryEntry) {
	path = strings.TrimSpace(path)
	if path == "" {
		return func(HistoryEntry) {}
	}
	return func(entry HistoryEntry) {
		if err := appendHistoryEntry(path, entry); err != nil {
			logger.Debug("history not recorded", slog.String("path", path), slog.Any("error", err))
		}
	}
}

func appendHistoryEntry(path string, entry HistoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	return nil
}

func printHistory(w io.Writer, path string, limit int, output string) error {
	entries, err := readHistoryEntries(path)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No history entries found.")
		return err
	}

	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}

	switch output {
	case "json":
		payload, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	case "table":
		columns := []string{"timestamp", "run", "report", "args", "rows", "ms", "error"}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			args := make([]string, len(e.Args))
			for i, a := range e.Args {
				args[i] = strconv.FormatInt(a, 10)
			}
			rows = append(rows, []string{
				e.Timestamp.Format(time.RFC3339),
				shortRunID(e.RunID),
				e.Report,
				strings.Join(args, ","),
				strconv.Itoa(e.Rows),
				strconv.FormatInt(e.DurationMs, 10),
				e.Error,
			})
		}
		_, err := fmt.Fprintln(w, renderTable(columns, rows))
		return err
	default:
		return fmt.Errorf("unsupported history output %q (expected table|json)", output)
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func readHistoryEntries(path string) ([]HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)

	entries := make([]HistoryEntry, 0)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("parse history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}

	return entries, nil
}

// Package sessionlog reads the append-only session logs written by the
// openclaw agent process. The logs are the canonical record of every
// conversation; this package is strictly read-only over them.
package sessionlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSourceUnavailable is returned when a session's log file does not exist
// yet. A brand-new session has no log until the agent writes its first line,
// so callers treat this as zero entries rather than a failure.
var ErrSourceUnavailable = errors.New("session log not available")

// MalformedRecordError reports a single unparsable line. The read never
// aborts on one bad line; the error carries the line number for logging.
type MalformedRecordError struct {
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Role identifies the author of a log entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one parsed line of a session log, in file order.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Ref identifies one session log on disk.
type Ref struct {
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
}

// Path returns the log file location for a session under the given
// sessions directory.
func (r Ref) Path(dir string) string {
	return filepath.Join(dir, "agents", r.AgentID, "sessions", r.SessionID+".jsonl")
}

// logLine is the on-disk shape of one record. The agent writes several
// record types; only "message" lines carry conversation content.
type logLine struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// Reader parses session logs under a fixed sessions directory.
type Reader struct {
	dir string
}

// NewReader returns a Reader rooted at the given sessions directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Read parses the session's log into ordered entries. A missing file yields
// ErrSourceUnavailable with no entries. Unparsable lines are skipped and
// reported as MalformedRecordError values alongside the entries that did
// parse; the caller decides whether to log them.
func (r *Reader) Read(ref Ref) ([]Entry, []*MalformedRecordError, error) {
	f, err := os.Open(ref.Path(r.dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrSourceUnavailable
		}
		return nil, nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	var malformed []*MalformedRecordError

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec logLine
		if err := json.Unmarshal(line, &rec); err != nil {
			malformed = append(malformed, &MalformedRecordError{Line: lineNo, Err: err})
			continue
		}
		if rec.Type != "message" {
			continue
		}

		role := Role(rec.Message.Role)
		if role != RoleUser && role != RoleAssistant {
			continue
		}

		text := ""
		for _, block := range rec.Message.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		if text == "" {
			continue
		}

		entries = append(entries, Entry{Role: role, Content: text})
	}
	if err := scanner.Err(); err != nil {
		return entries, malformed, fmt.Errorf("read session log: %w", err)
	}

	return entries, malformed, nil
}

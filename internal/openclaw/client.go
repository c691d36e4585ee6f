// Package openclaw invokes the external openclaw agent process. The agent
// owns the session logs; this package only sends input and captures the
// response text from stdout.
package openclaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/clawdeck/clawdeck/internal/sessionlog"
)

// InvocationError wraps any transport or process failure from the agent.
// Invocations are retryable; callers on the interactive path surface the
// error, background sweeps skip the item and retry next cycle.
type InvocationError struct {
	Op  string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent invocation failed (%s): %v", e.Op, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invoker is the agent capability consumed by the engine. Both methods may
// fail with *InvocationError.
type Invoker interface {
	// Send delivers a user message into the session. The agent appends
	// both the message and its response to the session log; the returned
	// string is the assistant's response text.
	Send(ctx context.Context, ref sessionlog.Ref, text string) (string, error)

	// Summarize produces a short title for the given conversation excerpt.
	Summarize(ctx context.Context, excerpt string) (string, error)
}

// agentOutput is the stdout shape of `openclaw agent --json`.
type agentOutput struct {
	Payloads []struct {
		Text string `json:"text"`
	} `json:"payloads"`
}

// Client invokes the openclaw CLI as a subprocess.
type Client struct {
	binary  string
	timeout time.Duration
}

// NewClient resolves the openclaw binary and returns a Client. The binary
// argument may be an absolute path or a bare name searched on a sanitized
// PATH.
func NewClient(binary string, timeout time.Duration) (*Client, error) {
	path, err := findBinary(binary)
	if err != nil {
		return nil, err
	}
	return &Client{binary: path, timeout: timeout}, nil
}

// Send implements Invoker.
func (c *Client) Send(ctx context.Context, ref sessionlog.Ref, text string) (string, error) {
	args := []string{
		"agent", "--local",
		"--agent", ref.AgentID,
		"--session", ref.SessionID,
		"--message", text,
		"--json",
	}
	out, err := c.run(ctx, args)
	if err != nil {
		return "", &InvocationError{Op: "send", Err: err}
	}
	return out, nil
}

// Summarize implements Invoker. Summarization runs against the default
// agent without a session so it leaves no log behind.
func (c *Client) Summarize(ctx context.Context, excerpt string) (string, error) {
	prompt := "Generate a short, concise title (3-5 words) for a conversation that starts with this message. " +
		"Respond with only the title, no quotes or punctuation.\n\n" + excerpt
	args := []string{
		"agent", "--local",
		"--agent", "main",
		"--message", prompt,
		"--json",
	}
	out, err := c.run(ctx, args)
	if err != nil {
		return "", &InvocationError{Op: "summarize", Err: err}
	}
	return strings.Trim(strings.TrimSpace(out), `"'`), nil
}

func (c *Client) run(ctx context.Context, args []string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Env = safeEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}

	var parsed agentOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		raw := stdout.String()
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return "", fmt.Errorf("parse agent output: %w (raw: %s)", err, raw)
	}

	var parts []string
	for _, p := range parsed.Payloads {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if text == "" {
		return "", fmt.Errorf("agent returned empty response")
	}
	return text, nil
}

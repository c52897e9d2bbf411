// Package ipc carries worksetctl commands to the running workset daemon
// over a per-user Windows named pipe.
package ipc

import (
	"encoding/json"
	"log/slog"
	"os"
	"os/user"
	"regexp"
	"strings"
)

var pipeNamePattern = regexp.MustCompile(`(?i)^\\\\\.\\pipe\\workset-[a-z0-9._-]{1,128}$`)

const defaultPipePrefix = `\\.\pipe\workset-`

// Request is a single control command.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is a control command result.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// CommandExecutor handles a control request and returns a response.
type CommandExecutor interface {
	Execute(req Request) Response
}

var invalidUsernameRune = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeUsername normalizes username-like values used in pipe names.
func sanitizeUsername(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return invalidUsernameRune.ReplaceAllString(value, "_")
}

// DefaultPipeName returns the pipe path to use. If the WORKSET_PIPE
// environment variable is set and passes pattern validation, its value is
// used; otherwise a per-user default is constructed from the current username.
func DefaultPipeName() string {
	if v, ok := trustedPipeNameFromEnv(); ok {
		return v
	}

	username := strings.TrimSpace(os.Getenv("USERNAME"))
	if username == "" {
		if current, err := user.Current(); err == nil {
			username = current.Username
		}
	}
	return defaultPipePrefix + sanitizeUsername(username)
}

func trustedPipeNameFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv("WORKSET_PIPE"))
	if value == "" {
		return "", false
	}
	if !pipeNamePattern.MatchString(value) {
		slog.Warn("[ipc] WORKSET_PIPE rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(raw, &req)
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	err := json.Unmarshal(raw, &resp)
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

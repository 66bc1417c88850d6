package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/pipeforge/pipeforged/internal/errs"
	"github.com/pipeforge/pipeforged/internal/sandbox"
	"github.com/pipeforge/pipeforged/internal/store"
)

// Request is the stdin payload handed to every fetcher program (§4.2).
type Request struct {
	Items     []string        `json:"items"`
	Options   json.RawMessage `json:"options,omitempty"`
	Checksums []string        `json:"checksums"`
	Cache     string          `json:"cache"`
	Output    string          `json:"output"`
}

// response is the stdout payload a fetcher writes.
type response struct {
	Error string `json:"error,omitempty"`
}

// Fetch runs a fetcher program inside an already-started sandbox,
// feeding it req on stdin, and fails on a non-zero exit code or an
// {"error": ...} reply on stdout. It does not look at the produced
// files; hashes is not consulted here, and presence and integrity are
// checked afterwards through store.CommitSource and Verify.
func Fetch(ctx context.Context, sb *sandbox.Sandbox, args []string, req Request, hashes []store.ContentHash, killGrace time.Duration) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	result, err := sb.RunWithStdin(ctx, args, nil, "", bytes.NewReader(payload), killGrace)
	if err != nil {
		return errs.Wrap(ErrSourceUnavailable, err)
	}

	if result.ExitCode != 0 {
		return errs.Wrapf(ErrSourceUnavailable, "fetcher exited %d: %s", result.ExitCode, result.Stderr)
	}

	var resp response
	if err := json.Unmarshal([]byte(result.Stdout), &resp); err == nil && resp.Error != "" {
		return errs.Wrapf(ErrSourceUnavailable, "fetcher reported error: %s", resp.Error)
	}

	return nil
}

// Verify checks that every requested hash is now a valid blob in s,
// independent of whatever the fetcher claimed on stdout (invariant 4:
// "source integrity"). Call it immediately after a successful Fetch.
func Verify(s *store.Store, sourceType string, hashes []store.ContentHash) error {
	for _, h := range hashes {
		if !s.HasSource(sourceType, h) {
			return errs.Wrapf(ErrSourceUnavailable, "%s: fetcher did not produce %s", sourceType, h)
		}
	}
	return nil
}

package sources

import "errors"

// ErrSourceUnavailable is returned when a fetcher fails, returns a
// non-zero exit code, or reports {"error": ...}, and by Verify when a
// requested hash is missing from the store. A blob whose content does
// not match its hash is rejected by store.CommitSource with
// store.ErrSourceInvalid instead. Fatal for dependent pipelines (§7).
var ErrSourceUnavailable = errors.New("source unavailable")

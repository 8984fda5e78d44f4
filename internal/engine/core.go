package engine

import "context"

// Named identifies a source or sink in logs and run summaries. Kind is the
// registry kind it was created from; Name includes its location.
type Named interface {
	Name() string
	Kind() string
}

// Closer flushes and releases a sink. Sources hold no state between calls and do not close.
type Closer interface {
	Close(context.Context) error
}

// ISO8601Basic formats JOB_DATE_ISO8601. It has no colons, so it is safe in
// archive names, S3 keys and file paths.
const ISO8601Basic = "20060102T150405Z"

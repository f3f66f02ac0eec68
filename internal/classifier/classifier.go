package classifier

import (
	"context"
	"encoding/json"
)

// Result carries the classifier's stdout payload on a successful run. The
// payload is relayed to clients verbatim, so it is kept as raw JSON rather
// than decoded into a fixed shape.
type Result struct {
	Payload json.RawMessage
}

// Runner invokes the external classifier against a saved image file.
type Runner interface {
	Classify(ctx context.Context, imagePath string) (*Result, error)
}

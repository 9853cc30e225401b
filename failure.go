package nodeflow

// FailureSummary is the user-visible report produced when a run propagates
// a terminal error, per spec.md section 7.
type FailureSummary struct {
	TraceID       string
	FailedNodeID  string
	Reason        string
	PolicySnapshot Policy
	ContextDigest  ContextDigest
}

// ContextDigest is a lightweight, safe-to-log summary of a context: its key
// set and size, plus a preview of the input payload, never the full
// (potentially large or sensitive) context contents.
type ContextDigest struct {
	Keys         []string
	Size         int
	InputPreview string
}

// digestContext builds a ContextDigest from ctx, previewing the entry
// node's input payload.
func digestContext(ctx Context, entryPayload any) ContextDigest {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	preview := asString(entryPayload)
	const maxPreview = 200
	if len(preview) > maxPreview {
		preview = preview[:maxPreview] + "..."
	}
	return ContextDigest{Keys: keys, Size: len(ctx), InputPreview: preview}
}

// NewFailureSummary builds the failure summary from run-time state at the
// point an error propagates out of Run.
func NewFailureSummary(traceID string, ctx Context, pol Policy, entryPayload any) FailureSummary {
	nodeID, _ := ctx[KeyFailedNodeID].(string)
	message, _ := ctx[KeyFailedMessage].(string)
	return FailureSummary{
		TraceID:        traceID,
		FailedNodeID:   nodeID,
		Reason:         message,
		PolicySnapshot: pol,
		ContextDigest:  digestContext(ctx, entryPayload),
	}
}

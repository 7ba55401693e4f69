package index

// Artifact is an encoded byte sequence with its fingerprint.
type Artifact struct {
	Body        []byte
	Fingerprint Fingerprint
}

// Result is the outcome of a conditional read. When NotModified is false,
// Artifact carries both the body and the fingerprint the client should keep.
type Result struct {
	NotModified bool
	Artifact    Artifact
}

// Evaluate compares the client's fingerprint with the current artifact.
// Only an exact, non-empty match is NotModified; there is no weak matching.
func Evaluate(client Fingerprint, current Artifact) Result {
	if client != "" && client == current.Fingerprint {
		return Result{NotModified: true, Artifact: Artifact{Fingerprint: current.Fingerprint}}
	}
	return Result{Artifact: current}
}

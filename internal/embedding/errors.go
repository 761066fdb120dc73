package embedding

import "errors"

// ErrUnavailable reports that the embedding backend could not produce a
// vector: the inference runtime failed or the remote endpoint was
// unreachable. Callers use it to distinguish backend failure from a
// question that is simply out of scope.
var ErrUnavailable = errors.New("embedding backend unavailable")

package process

import "errors"

// ErrExecutableNotFound is returned when Spec.Command cannot be found on
// PATH (an ENOENT spawn error).
var ErrExecutableNotFound = errors.New("process: executable not found")

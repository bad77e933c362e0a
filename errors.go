package catalogcache

import (
	"errors"
	"fmt"
)

// ErrTagMismatch is returned when a key is used with a view bound to a
// different tag.
var ErrTagMismatch = errors.New("catalogcache: key tag does not match view tag")

// PatchError reports entries a bulk update could not persist. The pass always
// runs to completion: one failing provider write must not leave other matched
// entries unpatched.
type PatchError struct {
	Tag  Tag
	Errs []error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch over %q entries: %d of the matched entries failed: %v",
		e.Tag, len(e.Errs), e.Errs)
}

func (e *PatchError) Unwrap() []error { return e.Errs }

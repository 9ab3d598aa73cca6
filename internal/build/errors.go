// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package build

import (
	"fmt"
	"strings"
)

// FileError is a failure to build a single file.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e *FileError) Unwrap() error { return e.Err }

// BatchError reports every file that failed to build. Files not listed were
// built and written.
type BatchError struct {
	Errs []*FileError
}

func (e *BatchError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d files failed to build:", len(e.Errs))
	for _, fe := range e.Errs {
		sb.WriteString("\n\t")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Errs))
	for i, fe := range e.Errs {
		errs[i] = fe
	}
	return errs
}

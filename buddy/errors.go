package buddy

import "github.com/pkg/errors"

// configError is a sentinel condition in Init's geometry validation. It is
// wrapped with github.com/pkg/errors so a caller several layers up (the
// kernel facade, the CLI) can still see where the bad geometry was caught.
type configError string

func (e configError) Error() string { return string(e) }

const (
	errLevels      configError = "levels must be positive"
	errHeaderFit   configError = "pgsize too small to hold a free-list header"
	errServGEPages configError = "service area consumes the entire arena"
	errArenaShort  configError = "arena shorter than pages * pgsize"
)

func badConfig(cause configError, detail string) error {
	return errors.Wrap(cause, detail)
}

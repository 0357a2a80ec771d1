package kernel

// kernelError is a sentinel condition with no dynamic detail worth
// wrapping — there's nothing a caller several layers up gains from a
// stack trace on "already initialized". Geometry failures from buddy.Init
// keep their github.com/pkg/errors wrapping and are returned unchanged.
type kernelError string

func (e kernelError) Error() string { return string(e) }

const (
	errAlreadyInitialized kernelError = "kernel: buddy already initialized"
)

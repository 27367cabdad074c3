package bridge

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigbridge/rigbridge/modules/host"
)

// ExistError reports an access to a field or proxy that is destroyed,
// disconnected or never existed. Callers are expected to catch it and
// degrade gracefully rather than abort a whole synchronization pass.
type ExistError struct {
	What string
}

func (e ExistError) Error() string {
	return fmt.Sprintf("%s no longer exists", e.What)
}

// IsExist reports whether err is an ExistError anywhere in its chain.
func IsExist(err error) bool {
	var ee ExistError
	return errors.As(err, &ee)
}

// UnsupportedHandleTypeError reports an identity request for a handle kind
// the resolver does not recognize. This is a programming error, not retried.
type UnsupportedHandleTypeError struct {
	Kind host.Kind
}

func (e UnsupportedHandleTypeError) Error() string {
	return fmt.Sprintf("unsupported handle type %v", e.Kind)
}

package transport

import (
	"errors"
	"net"
)

func asNetError(err error, target *net.Error) bool {
	return errors.As(err, target)
}

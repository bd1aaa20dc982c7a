package exception

import "github.com/yanun0323/errors"

var (
	ErrStoreUnsupportedDriver = errors.New("store: unsupported driver")
)

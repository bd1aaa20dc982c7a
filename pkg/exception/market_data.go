package exception

import "github.com/yanun0323/errors"

var (
	ErrFeedNilSource      = errors.New("market data: nil source")
	ErrFeedNilHandler     = errors.New("market data: nil handler")
	ErrFeedAlreadyRunning = errors.New("market data: feed already running")
	ErrFeedSourceOpen     = errors.New("market data: cannot open source")
	ErrFeedMalformedLine  = errors.New("market data: malformed line")
)

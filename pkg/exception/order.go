package exception

import "github.com/yanun0323/errors"

var (
	ErrOrderNotFound     = errors.New("order: not found")
	ErrOrderNilSink      = errors.New("order: nil sink")
	ErrOrderNilLedger    = errors.New("order: nil ledger")
	ErrOrderUnknownState = errors.New("order: invalid state transition")
	ErrOrderOverfill     = errors.New("order: filled quantity exceeds order quantity")
)

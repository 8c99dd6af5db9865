package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrIdentityNotFound = fmt.Errorf("identity not found")
	ErrShuttingDown     = fmt.Errorf("gateway is shutting down")
	ErrQueueFull        = fmt.Errorf("outbound queue full")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrUnknownEvent     = fmt.Errorf("unknown event")
)

package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrTransportClosed = fmt.Errorf("push transport closed")
	ErrRoomNotOpen     = fmt.Errorf("room is not open")
	ErrFetchFailed     = fmt.Errorf("message fetch failed")
	ErrSendFailed      = fmt.Errorf("message send failed")
	ErrUploadFailed    = fmt.Errorf("attachment upload failed")
	ErrInvalidSend     = fmt.Errorf("invalid send command")
)

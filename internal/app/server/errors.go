package server

var (
	ErrStatusInvalidAmount     string = "INVALID_AMOUNT"
	ErrStatusInsufficientFunds string = "INSUFFICIENT_FUNDS"
	ErrStatusAlreadyQueued     string = "ALREADY_QUEUED"
	ErrStatusTicketNotFound    string = "TICKET_NOT_FOUND"
	ErrStatusMatchNotFound     string = "MATCH_NOT_FOUND"
	ErrStatusNotParticipant    string = "NOT_PARTICIPANT"
	ErrStatusInvalidRequest    string = "INVALID_REQUEST"
	ErrStatusForbidden         string = "FORBIDDEN"
	ErrStatusInternal          string = "TRY_AGAIN"
)

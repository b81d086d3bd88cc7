package messaging

import "errors"

var (
	// ErrEmptyMessage is returned when the compose buffer is empty or whitespace only.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSendInFlight is returned when a submit is attempted while another is outstanding.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrNoConversation is returned when an action needs a selected conversation.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrNotConnected is returned when starting a conversation with a profile that is
	// not among the viewer's accepted connections.
	ErrNotConnected = errors.New("profile is not an accepted connection")
	// ErrInitiatorClosed is returned when the initiator is used while closed.
	ErrInitiatorClosed = errors.New("conversation initiator is not open")
	// ErrStartInFlight is returned when a conversation start is attempted while another
	// is outstanding.
	ErrStartInFlight = errors.New("a conversation is already being started")
	// ErrClosed is returned by components that have been shut down.
	ErrClosed = errors.New("messaging component closed")
)

package models

// MessageStatus is the delivery state a client can report for a message.
type MessageStatus string

const (
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

func (s MessageStatus) Valid() bool {
	return s == StatusDelivered || s == StatusRead
}

package request

// LoginRequest is the request body for claiming a username
type LoginRequest struct {
	Username string `json:"username"`
}

// SendMessageRequest is the request body for posting a message
type SendMessageRequest struct {
	Content string `json:"content"`
}

// DeleteMessageRequest is the request body for deleting a message.
// The ID may also be given as the "id" query parameter.
type DeleteMessageRequest struct {
	MessageID int64 `json:"message_id"`
}

// CreateRoomRequest is the request body for creating a private room
type CreateRoomRequest struct {
	Name string `json:"name,omitempty"`
}

// JoinRoomRequest is the request body for joining a private room
type JoinRoomRequest struct {
	Code string `json:"code"`
}

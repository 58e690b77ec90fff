package notification

type CreateNotificationRequest struct {
	RecipientID string `json:"recipient_id" binding:"required,uuid"`
	Kind        string `json:"kind" binding:"required"`
	Message     string `json:"message" binding:"required"`
	SourceRef   string `json:"source_ref"`
}

type NotificationResponse struct {
	ID          string  `json:"id"`
	RecipientID string  `json:"recipient_id"`
	Kind        string  `json:"kind"`
	Message     string  `json:"message"`
	SourceRef   string  `json:"source_ref,omitempty"`
	Read        bool    `json:"read"`
	ReadAt      *string `json:"read_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

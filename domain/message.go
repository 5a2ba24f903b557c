package domain

type Message struct {
	ID          int64   `db:"id" json:"id"`
	SenderID    int64   `db:"sender_id" json:"sender_id"`
	RecipientID int64   `db:"recipient_id" json:"recipient_id"`
	Body        *string `db:"body" json:"body,omitempty"`
	ImagePath   *string `db:"image_path" json:"image_path,omitempty"`
	// IsRead is stored for future inbox features; nothing flips it yet.
	IsRead    bool   `db:"is_read" json:"is_read"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

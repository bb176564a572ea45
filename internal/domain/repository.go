package domain

import "context"

// VideoRepository defines persistence for video records.
type VideoRepository interface {
	Insert(ctx context.Context, video *Video) (*Video, error)
	// GetByID returns the record only when it belongs to ownerID.
	GetByID(ctx context.Context, id, ownerID string) (*Video, error)
	Update(ctx context.Context, id string, update VideoUpdate) (*Video, error)
	Delete(ctx context.Context, id string) error
	// List returns a page of the owner's records, newest first, plus the
	// owner's total record count.
	List(ctx context.Context, ownerID string, limit, offset int) ([]Video, int, error)
}

// UserRepository defines access methods for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

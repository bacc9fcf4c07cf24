package repository

import "context"

// PreferenceRepo stores small string preferences by key.
type PreferenceRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

package driven

import "context"

// SettingStore defines the driven port for process-wide named values shared
// by every worker. Values are read fresh on every call.
type SettingStore interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, name string) (string, bool, error)
	// Set stores or replaces the value.
	Set(ctx context.Context, name, value string) error
}

package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":     {err: nil, want: false},
		"busy":    {err: errors.New("exec: SQLITE_BUSY"), want: true},
		"locked":  {err: fmt.Errorf("insert game: %w", errors.New("database is locked (5)")), want: true},
		"unique":  {err: errors.New("UNIQUE constraint failed: players.player_id"), want: false},
		"timeout": {err: errors.New("context deadline exceeded"), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tc.err); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

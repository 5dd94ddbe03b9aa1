//go:build windows

package ops

import (
	"os"

	"github.com/haiilab/sketchlab/internal/errors"
)

// openFileNoFollow opens path directly. Windows has no O_NOFOLLOW, so the
// symlink checks in ValidatePath are all there is.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}

package emit

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// WriteUnits stores units under dir. Every unit is written to a temporary
// file first; the files are renamed into place only after all writes
// succeeded, so a failed call leaves no partial output.
func WriteUnits(dir string, units []Unit) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", dir)
	}
	temps := make([]string, 0, len(units))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}
	for _, u := range units {
		f, err := os.CreateTemp(dir, "."+u.Module+"-*.swift")
		if err != nil {
			cleanup()
			return errors.Wrapf(err, "write %s", u.Path)
		}
		temps = append(temps, f.Name())
		if _, err := f.Write(u.Text); err != nil {
			f.Close()
			cleanup()
			return errors.Wrapf(err, "write %s", u.Path)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return errors.Wrapf(err, "write %s", u.Path)
		}
	}
	for i, u := range units {
		if err := os.Chmod(temps[i], 0o644); err != nil {
			cleanup()
			return errors.Wrapf(err, "write %s", u.Path)
		}
	}
	for i, u := range units {
		if err := os.Rename(temps[i], filepath.Join(dir, u.Path)); err != nil {
			cleanup()
			return errors.Wrapf(err, "write %s", u.Path)
		}
	}
	return nil
}

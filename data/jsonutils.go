package data

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path"
	"syscall"
)

// JsonReadSharedLock decodes the file at filePath under a shared flock.
// A missing or empty file yields the zero value of T.
func JsonReadSharedLock[T any](filePath string) (*T, error) {
	var data T

	file, err := os.OpenFile(filePath, os.O_RDONLY, 0666)
	if errors.Is(err, os.ErrNotExist) {
		return &data, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// lock the file (shared lock)
	if err = syscall.Flock(int(file.Fd()), syscall.LOCK_SH); err != nil {
		return nil, err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	err = json.NewDecoder(file).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &data, nil
}

// JsonUpdateExclusiveLock runs update against the decoded file contents while
// holding an exclusive flock and writes the result back. The file is created
// if needed; if update returns an error nothing is written.
func JsonUpdateExclusiveLock[T any](filePath string, update func(data *T) error) error {
	return jsonUpdateExclusiveLock(filePath, false, update)
}

// JsonUpdateExclusiveLockResetCorrupt is JsonUpdateExclusiveLock for files that
// only hold rebuildable data: contents that fail to decode are replaced by the
// zero value of T instead of failing the update.
func JsonUpdateExclusiveLockResetCorrupt[T any](filePath string, update func(data *T) error) error {
	return jsonUpdateExclusiveLock(filePath, true, update)
}

func jsonUpdateExclusiveLock[T any](filePath string, resetCorrupt bool, update func(data *T) error) error {
	if dir := path.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	defer file.Close()

	// lock the file (exclusive lock)
	if err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	var data T
	err = json.NewDecoder(file).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		if !resetCorrupt || !isDecodeError(err) {
			return err
		}
		var zero T
		data = zero
	}

	err = update(&data)
	if err != nil {
		return err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	err = json.NewEncoder(file).Encode(data)
	if err != nil {
		return err
	}

	// Get the current position of the file pointer and truncate the file to that position
	pos, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return file.Truncate(pos)
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

package inventory

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

// FileJournal appends serialized ledger mutations to a file for durability.
type FileJournal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileJournal constructs a FileJournal targeting the given path.
func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{path: path, f: f}, nil
}

// Write appends the provided data to the journal.
func (j *FileJournal) Write(data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	n, err := j.f.Write(append(data, '\n'))
	if err != nil {
		return err
	}
	if n != len(data)+1 {
		return fmt.Errorf("partial write: wrote %d of %d bytes", n, len(data)+1)
	}

	return j.f.Sync()
}

// Replay reads every journal entry in order and hands it to fn.
func (j *FileJournal) Replay(fn func(data []byte) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Close releases the underlying file handle.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

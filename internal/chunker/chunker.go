// Package chunker produces the ordered, fixed-size chunk sequence for a
// file upload. Chunks are materialized one at a time, so memory use stays
// flat no matter how large the file is.
package chunker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Chunk is one bounded piece of a file, tagged with its position and the
// total number of pieces in the sequence.
type Chunk struct {
	Filename string
	Index    int
	Total    int
	Final    bool
	Data     []byte
}

// Source walks a file as an ordered chunk sequence. It is restartable via
// Reset and must be closed after use.
type Source struct {
	file      *os.File
	filename  string
	size      int64
	chunkSize int
	total     int
	next      int
}

// Open prepares a chunk source for the file at path. A zero-byte file still
// yields exactly one empty final chunk, so the receiving side always
// observes a terminal signal.
func Open(path string, chunkSize int) (*Source, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}
	return &Source{
		file:      file,
		filename:  filepath.Base(path),
		size:      info.Size(),
		chunkSize: chunkSize,
		total:     TotalChunks(info.Size(), chunkSize),
	}, nil
}

// TotalChunks reports how many chunks a file of the given size splits into.
func TotalChunks(fileSize int64, chunkSize int) int {
	total := int((fileSize + int64(chunkSize) - 1) / int64(chunkSize))
	if total == 0 {
		total = 1
	}
	return total
}

// Filename returns the base name of the underlying file.
func (s *Source) Filename() string { return s.filename }

// Size returns the file size in bytes.
func (s *Source) Size() int64 { return s.size }

// Total returns the number of chunks in the sequence.
func (s *Source) Total() int { return s.total }

// Next returns the next chunk in order, or io.EOF once the sequence is
// exhausted.
func (s *Source) Next() (Chunk, error) {
	if s.next >= s.total {
		return Chunk{}, io.EOF
	}
	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Chunk{}, fmt.Errorf("failed to read chunk %d: %w", s.next, err)
	}
	chunk := Chunk{
		Filename: s.filename,
		Index:    s.next,
		Total:    s.total,
		Final:    s.next == s.total-1,
		Data:     buf[:n],
	}
	s.next++
	return chunk, nil
}

// Reset rewinds the sequence back to chunk zero.
func (s *Source) Reset() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}
	s.next = 0
	return nil
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

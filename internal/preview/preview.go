// Package preview holds the in-memory preview images shown on item cards.
// Each preview is addressed by an opaque handle that is valid until it is
// released.
package preview

import (
	"net/http"
	"sync"

	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMaxDimension is the longest edge of a generated preview.
const DefaultMaxDimension = 512

// Blob is one stored preview.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Store maps handles to preview blobs. It is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	blobs        map[string]Blob
	maxDimension int
}

// NewStore creates an empty store. maxDimension <= 0 uses DefaultMaxDimension.
func NewStore(maxDimension int) *Store {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Store{
		blobs:        make(map[string]Blob),
		maxDimension: maxDimension,
	}
}

// Create stores a downsized copy of payload and returns its handle. A payload
// that cannot be decoded is stored as is, so the browser can still try.
func (s *Store) Create(payload []byte) string {
	blob := Blob{Data: payload, MIMEType: http.DetectContentType(payload)}
	if prepared, err := filehandler.PrepareImage(payload, s.maxDimension); err == nil {
		blob = Blob{Data: prepared.Data, MIMEType: prepared.MIMEType}
	} else {
		log.Debug().Err(err).Msg("Preview downsizing failed, keeping original bytes")
	}

	handle := uuid.NewString()

	s.mu.Lock()
	s.blobs[handle] = blob
	s.mu.Unlock()

	return handle
}

// Get returns the blob for handle.
func (s *Store) Get(handle string) (Blob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[handle]
	return b, ok
}

// Release frees the blob for handle. Releasing an unknown or already
// released handle is a no-op that returns false.
func (s *Store) Release(handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[handle]; !ok {
		log.Warn().Str("handle", handle).Msg("Release of unknown preview handle")
		return false
	}
	delete(s.blobs, handle)
	return true
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

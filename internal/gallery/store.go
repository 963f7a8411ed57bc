package gallery

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
)

// DefaultCapacity is how many screenshots the gallery keeps.
const DefaultCapacity = 50

// ErrOutOfRange is returned by Get for an index outside the gallery.
var ErrOutOfRange = errors.New("screenshot index out of range")

const dataURLPrefix = "data:image/"

// rawSignatures maps the base64 form of an image's magic bytes to its
// MIME subtype.
var rawSignatures = []struct {
	prefix string
	format string
}{
	{"/9j/", "jpeg"},
	{"iVBORw0KGgo", "png"},
	{"R0lGOD", "gif"},
	{"UklGR", "webp"},
}

// Store holds the most recent screenshots for the gallery page.
type Store struct {
	mu       sync.RWMutex
	items    []string
	capacity int
	pub      events.Publisher
}

// New creates a gallery store keeping at most capacity screenshots.
// A nil publisher discards events.
func New(capacity int, pub events.Publisher) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if pub == nil {
		pub = events.Discard
	}
	return &Store{capacity: capacity, pub: pub}
}

// Capacity returns the maximum number of screenshots kept.
func (s *Store) Capacity() int { return s.capacity }

// SetGallery replaces the gallery with the valid items of raw, keeping the
// last Capacity() of them in submission order. Invalid items are reported
// and skipped; they never abort the batch. Returns the number stored.
func (s *Store) SetGallery(raw []any) int {
	ring := NewRingBuffer[string](s.capacity)
	for i, item := range raw {
		str, ok := item.(string)
		if !ok {
			s.pub.Publish(events.Status("⚠️", fmt.Sprintf("Skipping non-string screenshot data at index %d", i)))
			continue
		}
		record, converted, ok := Normalize(str)
		if !ok {
			s.pub.Publish(events.Status("⚠️", fmt.Sprintf("Skipping invalid screenshot data at index %d", i)))
			continue
		}
		if converted != "" {
			s.pub.Publish(events.Status("🔧", fmt.Sprintf("Converting raw base64 %s to data URL at index %d", strings.ToUpper(converted), i)))
		}
		ring.Write(record)
	}

	items := ring.ReadAll()
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.pub.Publish(events.GalleryUpdated{})
	s.pub.Publish(events.Status("🖼️", fmt.Sprintf("Screenshot gallery updated with %d images.", len(items))))
	return len(items)
}

// SetGalleryStrings is SetGallery for callers that already hold strings.
func (s *Store) SetGalleryStrings(raw []string) int {
	items := make([]any, len(raw))
	for i, r := range raw {
		items[i] = r
	}
	return s.SetGallery(items)
}

// Get returns the screenshot at index i.
func (s *Store) Get(i int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.items) {
		return "", fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, i, len(s.items))
	}
	return s.items[i], nil
}

// List returns a copy of all screenshots, oldest first.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of screenshots held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Normalize turns a screenshot string into a data URL. converted names the
// detected format when a bare base64 payload had to be prefixed, and ok is
// false when the input is not recognisable image data.
func Normalize(s string) (record string, converted string, ok bool) {
	if strings.HasPrefix(s, dataURLPrefix) && strings.Contains(s, "base64,") {
		return s, "", true
	}
	for _, sig := range rawSignatures {
		if strings.HasPrefix(s, sig.prefix) {
			// The signature is the encoded magic bytes, part of the payload.
			return dataURLPrefix + sig.format + ";base64," + s, sig.format, true
		}
	}
	return "", "", false
}

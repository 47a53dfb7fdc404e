package sightings

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"sync"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
)

// MaxPhotoBytes matches the backend upload limit.
const MaxPhotoBytes = 8 << 20

// allowedPhotoTypes are the image types the backend stores.
var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Preview is an open handle on a selected photo. It stays valid until released.
type Preview struct {
	Name        string
	ContentType string
	Size        int64

	file     fs.File
	once     sync.Once
	released bool
	mu       sync.Mutex
}

// File returns the photo as an upload body, rewound to the start.
func (p *Preview) File() (api.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return api.File{}, errors.Newf("photo %s is no longer selected", p.Name).
			Component("sightings").
			Category(errors.CategoryState).
			Build()
	}
	if seeker, ok := p.file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return api.File{}, fmt.Errorf("failed to rewind %s: %w", p.Name, err)
		}
	}
	return api.File{Name: p.Name, ContentType: p.ContentType, Reader: p.file}, nil
}

// Released reports whether the handle has been released.
func (p *Preview) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

func (p *Preview) release() {
	p.once.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.released = true
		_ = p.file.Close()
	})
}

// Selection owns at most one selected photo. Selecting a new file or clearing
// releases the previous preview; Release must be called when the owner goes away.
type Selection struct {
	fsys fs.FS

	mu      sync.Mutex
	current *Preview
}

// NewSelection selects files from fsys.
func NewSelection(fsys fs.FS) *Selection {
	return &Selection{fsys: fsys}
}

// Select opens name, sniffs its type and makes it the current photo.
// A rejected file leaves the previous selection untouched.
func (s *Selection) Select(name string) (*Preview, error) {
	preview, err := s.open(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.current
	s.current = preview
	s.mu.Unlock()

	if previous != nil {
		previous.release()
	}
	return preview, nil
}

// Current returns the selected photo, or nil.
func (s *Selection) Current() *Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Release drops the current photo, if any.
func (s *Selection) Release() {
	s.mu.Lock()
	previous := s.current
	s.current = nil
	s.mu.Unlock()

	if previous != nil {
		previous.release()
	}
}

func (s *Selection) open(name string) (*Preview, error) {
	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, errors.New(err).
			Component("sightings").
			Category(errors.CategoryValidation).
			Context("operation", "open_photo").
			Build()
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, errors.ValidationError(fmt.Sprintf("%s is a directory", name))
	}
	if info.Size() > MaxPhotoBytes {
		_ = f.Close()
		return nil, errors.ValidationError(fmt.Sprintf("Photo exceeds %dMB limit.", MaxPhotoBytes>>20))
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	contentType := http.DetectContentType(head[:n])
	if !allowedPhotoTypes[contentType] {
		_ = f.Close()
		return nil, errors.ValidationError("Unsupported image type. Use jpeg, png or webp.")
	}

	if _, ok := f.(io.Seeker); !ok {
		// Without seeking the sniffed header would be lost; reopen instead.
		_ = f.Close()
		if f, err = s.fsys.Open(name); err != nil {
			return nil, fmt.Errorf("failed to reopen %s: %w", name, err)
		}
	}

	return &Preview{
		Name:        path.Base(name),
		ContentType: contentType,
		Size:        info.Size(),
		file:        f,
	}, nil
}

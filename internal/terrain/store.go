package terrain

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRejected is returned when the world refuses a surface write.
var ErrRejected = errors.New("terrain: write rejected")

// Surface is the live state of one world column.
type Surface struct {
	Height   float64
	Material string
}

// World is the live world representation terrain is written into.
type World interface {
	// Surface returns the column at (x, z) and whether it has been set.
	Surface(x, z int) (Surface, bool)
	SetSurface(x, z int, s Surface) error
	ClearSurface(x, z int) error
}

const pageSize = 16

type pageCoord struct{ X, Z int }

type page struct {
	cols [pageSize * pageSize]Surface
	set  [pageSize * pageSize]bool
	n    int
}

// Store is an in-memory World organised in 16×16 column pages.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	pages    map[pageCoord]*page
	modCount uint64
	columns  int

	// optional write validation
	materials map[string]struct{}
	bounded   bool
	minX      int
	minZ      int
	maxX      int
	maxZ      int
	maxHeight float64
}

// StoreOption configures write validation on a Store.
type StoreOption func(*Store)

// WithMaterials restricts writes to the listed materials.
func WithMaterials(materials ...string) StoreOption {
	return func(s *Store) {
		s.materials = make(map[string]struct{}, len(materials))
		for _, m := range materials {
			s.materials[m] = struct{}{}
		}
	}
}

// WithBounds rejects writes outside [minX, maxX] × [minZ, maxZ].
func WithBounds(minX, minZ, maxX, maxZ int) StoreOption {
	return func(s *Store) {
		s.bounded = true
		s.minX, s.minZ, s.maxX, s.maxZ = minX, minZ, maxX, maxZ
	}
}

// WithMaxHeight rejects heights outside [0, h].
func WithMaxHeight(h float64) StoreOption {
	return func(s *Store) { s.maxHeight = h }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{pages: make(map[pageCoord]*page)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func locate(x, z int) (pageCoord, int) {
	pc := pageCoord{X: floorDiv(x, pageSize), Z: floorDiv(z, pageSize)}
	return pc, mod(z, pageSize)*pageSize + mod(x, pageSize)
}

// Surface returns the column at (x, z).
func (s *Store) Surface(x, z int) (Surface, bool) {
	pc, idx := locate(x, z)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[pc]
	if !ok || !p.set[idx] {
		return Surface{}, false
	}
	return p.cols[idx], true
}

// SetSurface writes the column at (x, z) after validation.
func (s *Store) SetSurface(x, z int, surf Surface) error {
	if err := s.validate(x, z, surf); err != nil {
		return err
	}
	pc, idx := locate(x, z)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pc]
	if !ok {
		p = &page{}
		s.pages[pc] = p
	}
	if !p.set[idx] {
		p.set[idx] = true
		p.n++
		s.columns++
	}
	p.cols[idx] = surf
	s.modCount++
	return nil
}

// ClearSurface unsets the column at (x, z). Clearing an unset column is a no-op.
func (s *Store) ClearSurface(x, z int) error {
	pc, idx := locate(x, z)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[pc]
	if !ok || !p.set[idx] {
		return nil
	}
	p.set[idx] = false
	p.cols[idx] = Surface{}
	p.n--
	s.columns--
	if p.n == 0 {
		delete(s.pages, pc)
	}
	s.modCount++
	return nil
}

func (s *Store) validate(x, z int, surf Surface) error {
	if s.bounded && (x < s.minX || x > s.maxX || z < s.minZ || z > s.maxZ) {
		return fmt.Errorf("%w: (%d, %d) out of bounds", ErrRejected, x, z)
	}
	if s.materials != nil {
		if _, ok := s.materials[surf.Material]; !ok {
			return fmt.Errorf("%w: invalid material %q at (%d, %d)", ErrRejected, surf.Material, x, z)
		}
	}
	if s.maxHeight > 0 && (surf.Height < 0 || surf.Height > s.maxHeight) {
		return fmt.Errorf("%w: height %v at (%d, %d)", ErrRejected, surf.Height, x, z)
	}
	return nil
}

// ModCount increases on every write or clear.
func (s *Store) ModCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modCount
}

// Columns returns the number of set columns.
func (s *Store) Columns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columns
}

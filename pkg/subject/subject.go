// Package subject bundles the co-registered images and scalar metadata of a
// single data sample under role names such as "t1" or "label".
package subject

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/student-shriman/torch-io/pkg/medvol"
)

var (
	ErrNoImages        = errors.New("subject has no images")
	ErrUnknownRole     = errors.New("no image for role")
	ErrSpatialMismatch = errors.New("subject images do not share a spatial shape")
)

// Subject maps role names to images and carries arbitrary scalar attributes.
type Subject struct {
	images map[string]*medvol.Image
	attrs  map[string]any
}

// Option configures a subject under construction.
type Option func(s *Subject)

// WithImage attaches an image under the given role.
func WithImage(role string, image *medvol.Image) Option {
	return func(s *Subject) {
		s.images[role] = image
	}
}

// WithAttr attaches a scalar attribute, e.g. a diagnosis string.
func WithAttr(name string, value any) Option {
	return func(s *Subject) {
		s.attrs[name] = value
	}
}

// New builds a subject from options. At least one image is required.
func New(opts ...Option) (*Subject, error) {
	s := &Subject{
		images: make(map[string]*medvol.Image),
		attrs:  make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.images) == 0 {
		return nil, ErrNoImages
	}
	return s, nil
}

// Image returns the image attached under role.
func (s *Subject) Image(role string) (*medvol.Image, error) {
	image, ok := s.images[role]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRole, "role %q", role)
	}
	return image, nil
}

// SetImage replaces the image under role.
func (s *Subject) SetImage(role string, image *medvol.Image) {
	s.images[role] = image
}

// Roles returns the image role names in stable sorted order.
func (s *Subject) Roles() []string {
	roles := make([]string, 0, len(s.images))
	for role := range s.images {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Attr returns a scalar attribute.
func (s *Subject) Attr(name string) (any, bool) {
	value, ok := s.attrs[name]
	return value, ok
}

// SetAttr assigns a scalar attribute.
func (s *Subject) SetAttr(name string, value any) {
	s.attrs[name] = value
}

// AttrNames returns the attribute names in stable sorted order.
func (s *Subject) AttrNames() []string {
	names := make([]string, 0, len(s.attrs))
	for name := range s.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads every image into memory.
func (s *Subject) Load(ctx context.Context) error {
	for _, role := range s.Roles() {
		if _, err := s.images[role].Load(ctx); err != nil {
			return errors.Wrapf(err, "role %q", role)
		}
	}
	return nil
}

// SpatialShape returns the [X, Y, Z] shape of the first role in sorted order.
// Images must be loaded.
func (s *Subject) SpatialShape() ([3]int, error) {
	roles := s.Roles()
	vol, err := s.images[roles[0]].Volume()
	if err != nil {
		return [3]int{}, errors.Wrapf(err, "role %q", roles[0])
	}
	return vol.SpatialShape(), nil
}

// CheckConsistentSpace verifies that all loaded images share one spatial
// shape. Images of one subject typically do, but it is not enforced at
// construction, so callers opt in before spatial transforms.
func (s *Subject) CheckConsistentSpace() error {
	shape, err := s.SpatialShape()
	if err != nil {
		return err
	}
	for _, role := range s.Roles() {
		vol, err := s.images[role].Volume()
		if err != nil {
			return errors.Wrapf(err, "role %q", role)
		}
		if vol.SpatialShape() != shape {
			return errors.Wrapf(ErrSpatialMismatch, "role %q has %v, want %v",
				role, vol.SpatialShape(), shape)
		}
	}
	return nil
}

// Clone deep-copies loaded volumes and attributes; unloaded images stay file
// references.
func (s *Subject) Clone() *Subject {
	out := &Subject{
		images: make(map[string]*medvol.Image, len(s.images)),
		attrs:  make(map[string]any, len(s.attrs)),
	}
	for role, image := range s.images {
		out.images[role] = image.Clone()
	}
	for name, value := range s.attrs {
		out.attrs[name] = value
	}
	return out
}

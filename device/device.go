// Package device resolves opaque device ids to remote targets. The service
// looks a device up once per run; the CLI manages the catalog.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/shellpilot/remote"
)

// Sentinel errors for device lookups.
var (
	ErrNotFound      = errors.New("device not found")
	ErrEmptyID       = errors.New("device id is empty")
	ErrUnknownDriver = errors.New("unknown device driver")
	ErrReadOnly      = errors.New("device catalog is read-only")
)

// Device is a named remote target.
type Device struct {
	ID            string `json:"id" yaml:"-"`
	remote.Target `yaml:",inline"`
}

// Validate checks the id and the target.
func (d Device) Validate() error {
	if d.ID == "" {
		return ErrEmptyID
	}
	if err := d.Target.Validate(); err != nil {
		return fmt.Errorf("device %s: %w", d.ID, err)
	}
	return nil
}

// Registry resolves device ids.
type Registry interface {
	Lookup(ctx context.Context, id string) (remote.Target, error)
}

// Catalog is a Registry that can also be edited.
type Catalog interface {
	Registry
	Put(ctx context.Context, d Device) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]Device, error)
	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Package testutil provides deterministic test doubles shared across
// packages.
package testutil

import (
	"fmt"

	"github.com/roach88/virtplan/internal/virt"
)

// Hypervisor is an in-memory virt.Connection factory for tests. It
// mirrors the metadata semantics of libvirt: one fragment per namespace
// per domain, and writing an empty fragment removes the attachment.
type Hypervisor struct {
	// Domains maps domain name to its fake handle.
	Domains map[string]*Domain

	// ConnectErr, when set, makes Connector fail.
	ConnectErr error

	// ConnectedURI records the URI passed to the last connect.
	ConnectedURI string

	// Closed reports whether the last connection was closed.
	Closed bool
}

// NewHypervisor creates a fake hypervisor hosting the named domains.
func NewHypervisor(domainNames ...string) *Hypervisor {
	h := &Hypervisor{Domains: map[string]*Domain{}}
	for _, name := range domainNames {
		h.Domains[name] = &Domain{name: name, fragments: map[string]string{}}
	}
	return h
}

// Connector returns a virt.Connector backed by this fake.
func (h *Hypervisor) Connector() virt.Connector {
	return func(uri string) (virt.Connection, error) {
		if h.ConnectErr != nil {
			return nil, h.ConnectErr
		}
		h.ConnectedURI = uri
		return &connection{hv: h}, nil
	}
}

type connection struct {
	hv *Hypervisor
}

func (c *connection) LookupDomainByName(name string) (virt.Domain, error) {
	dom, ok := c.hv.Domains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", virt.ErrDomainNotFound, name)
	}
	return dom, nil
}

func (c *connection) Close() error {
	c.hv.Closed = true
	return nil
}

// Domain is a fake virt.Domain holding fragments in memory.
type Domain struct {
	name      string
	fragments map[string]string

	// WriteErr, when set, makes SetMetadata fail.
	WriteErr error
}

func (d *Domain) Name() string { return d.name }

func (d *Domain) Metadata(namespaceURI string) (string, error) {
	fragment, ok := d.fragments[namespaceURI]
	if !ok {
		return "", fmt.Errorf("%w: domain %q namespace %q", virt.ErrMetadataAbsent, d.name, namespaceURI)
	}
	return fragment, nil
}

func (d *Domain) SetMetadata(fragment, key, namespaceURI string) error {
	if d.WriteErr != nil {
		return fmt.Errorf("%w: domain %q: %v", virt.ErrMetadataWrite, d.name, d.WriteErr)
	}
	if fragment == "" {
		delete(d.fragments, namespaceURI)
		return nil
	}
	d.fragments[namespaceURI] = fragment
	return nil
}

// Fragment returns the stored fragment for a namespace, if any.
func (d *Domain) Fragment(namespaceURI string) (string, bool) {
	fragment, ok := d.fragments[namespaceURI]
	return fragment, ok
}

// Attach seeds a fragment directly, bypassing SetMetadata.
func (d *Domain) Attach(namespaceURI, fragment string) {
	d.fragments[namespaceURI] = fragment
}

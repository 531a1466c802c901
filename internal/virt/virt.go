// Package virt abstracts the hypervisor control connection.
//
// The CLI only needs three capabilities: connect, look up a domain by
// name, and read/write an opaque metadata blob under a namespace. They
// are expressed as small interfaces so commands can be exercised against
// fakes; the production implementation in libvirt.go talks to libvirtd.
package virt

import "errors"

var (
	// ErrDomainNotFound is returned by Connection.LookupDomainByName
	// when no domain has the given name.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrMetadataAbsent is returned by Domain.Metadata when the domain
	// carries no metadata under the requested namespace. This is the
	// steady state for domains that never had a plan assigned.
	ErrMetadataAbsent = errors.New("metadata absent")

	// ErrMetadataWrite is returned by Domain.SetMetadata when the
	// hypervisor rejects the metadata update.
	ErrMetadataWrite = errors.New("metadata write failed")
)

// Connection is an open session with the hypervisor control layer.
type Connection interface {
	// LookupDomainByName locates a domain. Returns ErrDomainNotFound
	// if no domain has that name.
	LookupDomainByName(name string) (Domain, error)

	// Close releases the connection.
	Close() error
}

// Domain is a handle on one virtual machine.
type Domain interface {
	// Name returns the domain name.
	Name() string

	// Metadata returns the raw fragment stored under the namespace
	// URI, or ErrMetadataAbsent when none is attached.
	Metadata(namespaceURI string) (string, error)

	// SetMetadata attaches fragment under namespaceURI with the given
	// element key. An empty fragment removes the attachment.
	SetMetadata(fragment, key, namespaceURI string) error
}

// Connector opens a Connection to the given URI. Commands take one of
// these so tests can substitute a fake hypervisor.
type Connector func(uri string) (Connection, error)

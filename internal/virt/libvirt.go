package virt

import (
	"errors"
	"fmt"

	"libvirt.org/go/libvirt"
)

// Connect opens a libvirt connection. It is the production Connector.
func Connect(uri string) (Connection, error) {
	conn, err := libvirt.NewConnect(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to hypervisor at %q: %w", uri, err)
	}
	return &libvirtConnection{conn: conn}, nil
}

type libvirtConnection struct {
	conn *libvirt.Connect
}

func (c *libvirtConnection) LookupDomainByName(name string) (Domain, error) {
	dom, err := c.conn.LookupDomainByName(name)
	if err != nil {
		if isLibvirtError(err, libvirt.ERR_NO_DOMAIN) {
			return nil, fmt.Errorf("%w: %q", ErrDomainNotFound, name)
		}
		return nil, fmt.Errorf("look up domain %q: %w", name, err)
	}
	return &libvirtDomain{name: name, dom: dom}, nil
}

func (c *libvirtConnection) Close() error {
	_, err := c.conn.Close()
	return err
}

type libvirtDomain struct {
	name string
	dom  *libvirt.Domain
}

func (d *libvirtDomain) Name() string {
	return d.name
}

func (d *libvirtDomain) Metadata(namespaceURI string) (string, error) {
	fragment, err := d.dom.GetMetadata(libvirt.DOMAIN_METADATA_ELEMENT, namespaceURI, libvirt.DOMAIN_AFFECT_CURRENT)
	if err != nil {
		if isLibvirtError(err, libvirt.ERR_NO_DOMAIN_METADATA) {
			return "", fmt.Errorf("%w: domain %q namespace %q", ErrMetadataAbsent, d.name, namespaceURI)
		}
		return "", fmt.Errorf("read metadata on domain %q: %w", d.name, err)
	}
	return fragment, nil
}

func (d *libvirtDomain) SetMetadata(fragment, key, namespaceURI string) error {
	// The binding passes an empty fragment through as NULL, which
	// libvirt interprets as "remove the element".
	err := d.dom.SetMetadata(libvirt.DOMAIN_METADATA_ELEMENT, fragment, key, namespaceURI, libvirt.DOMAIN_AFFECT_CURRENT)
	if err != nil {
		return fmt.Errorf("%w: domain %q: %v", ErrMetadataWrite, d.name, err)
	}
	return nil
}

func isLibvirtError(err error, code libvirt.ErrorNumber) bool {
	var lverr libvirt.Error
	return errors.As(err, &lverr) && lverr.Code == code
}

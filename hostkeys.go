package sftpconn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// HostKeyEntry is one entry from a known_hosts file. The Host field may
// carry a "hostname,ipAddress" pair as a single comma-separated string, or
// a single host token.
type HostKeyEntry struct {
	// Host is the raw host field of the entry.
	Host string

	// KeyExchangeType is the host key algorithm recorded for the entry,
	// e.g. "ssh-ed25519" or "rsa-sha2-512".
	KeyExchangeType string
}

// KnownHost is the derived view of a HostKeyEntry's host field.
type KnownHost struct {
	// Hostname is the text before the comma, or the whole token when the
	// host field has no comma.
	Hostname string

	// IPAddress is the text after the comma, or empty when absent.
	IPAddress string
}

// knownHostView splits an entry's host field into its hostname and IP
// components. A host field with more than one comma is malformed: later
// segments would be silently discarded, so this fails instead.
func knownHostView(entry HostKeyEntry) (KnownHost, error) {
	parts := strings.Split(entry.Host, ",")
	switch len(parts) {
	case 1:
		return KnownHost{Hostname: parts[0]}, nil
	case 2:
		return KnownHost{Hostname: parts[0], IPAddress: parts[1]}, nil
	default:
		return KnownHost{}, newHostKeysError(
			fmt.Sprintf("malformed known hosts entry %q: expected at most one comma in host field", entry.Host))
	}
}

// LoadKnownHosts reads a known_hosts file into HostKeyEntry values,
// preserving file order. Comment and blank lines are skipped; hashed
// entries are kept verbatim (they simply never match a plaintext lookup).
func LoadKnownHosts(path string) ([]HostKeyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read known hosts file %s: %w", path, err)
	}

	var entries []HostKeyEntry
	rest := data
	for len(rest) > 0 {
		_, hosts, pubKey, _, remaining, err := ssh.ParseKnownHosts(rest)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse known hosts file %s: %w", path, err)
		}
		entries = append(entries, HostKeyEntry{
			Host:            strings.Join(hosts, ","),
			KeyExchangeType: pubKey.Type(),
		})
		rest = remaining
	}
	return entries, nil
}

// FindKeyExchangeType returns the key exchange type of the first entry
// matching hostOrIP, in entry order. When hostOrIP is an IP literal it is
// compared against each entry's IP component, otherwise against the
// hostname component. The second return value is false when nothing
// matches. A malformed entry encountered during the scan is an error.
func FindKeyExchangeType(hostOrIP string, entries []HostKeyEntry) (string, bool, error) {
	isIP := net.ParseIP(hostOrIP) != nil

	for _, entry := range entries {
		view, err := knownHostView(entry)
		if err != nil {
			return "", false, err
		}

		if isIP {
			if view.IPAddress == hostOrIP {
				return entry.KeyExchangeType, true, nil
			}
		} else if view.Hostname == hostOrIP {
			return entry.KeyExchangeType, true, nil
		}
	}
	return "", false, nil
}

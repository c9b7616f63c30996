package sftpconn

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Authentication method names as negotiated on the wire. These are the
// values accepted in Config.PreferredAuthMethods.
const (
	AuthMethodPublicKey = "publickey"
	AuthMethodPassword  = "password"
)

// Config holds the connection parameters for a Connector.
//
// At least one of Password or PrivateKeyFilePath must be set for Connect
// to succeed; when both are set the private key takes precedence. The
// struct is consumed read-only and is safe to copy.
type Config struct {
	// Host is the target SFTP server hostname or IP address.
	Host string `validate:"required"`

	// Port is the SSH port (default 22).
	Port int `validate:"gte=0,lte=65535"`

	// User is the SSH username.
	User string `validate:"required"`

	// Password is the SSH password. Optional when PrivateKeyFilePath is set.
	Password string

	// PrivateKeyFilePath is the path to a PEM-encoded SSH private key.
	// Takes precedence over Password when both are set.
	PrivateKeyFilePath string

	// PreferredAuthMethods restricts and orders the authentication methods
	// offered to the server ("publickey", "password"). Empty means offer
	// whichever method the selected credential implies.
	PreferredAuthMethods []string `validate:"dive,oneof=publickey password"`

	// KnownHostsFile is the path to a known_hosts file. It is used both
	// for host key verification and to look up the key exchange algorithm
	// recorded for the target host.
	KnownHostsFile string

	// Timeout bounds the TCP dial and SSH handshake (default 30s).
	Timeout time.Duration `validate:"gte=0"`

	// DisableStrictHostKeyChecking skips host key verification.
	// WARNING: this weakens security posture and is logged loudly.
	DisableStrictHostKeyChecking bool

	// RemoteBasePath is the remote directory the application treats as its
	// root. Informational only; transfer operations take explicit paths.
	RemoteBasePath string
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

var configValidator = validator.New()

// Validate checks the declarative field constraints. It does not verify
// that a usable credential is present; Connect performs that check.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return newConfigurationError("invalid config: " + err.Error())
	}
	return nil
}

// hasPrivateKey reports whether a non-blank private key path is configured.
func (c Config) hasPrivateKey() bool {
	return strings.TrimSpace(c.PrivateKeyFilePath) != ""
}

// hasPassword reports whether a non-blank password is configured.
func (c Config) hasPassword() bool {
	return strings.TrimSpace(c.Password) != ""
}

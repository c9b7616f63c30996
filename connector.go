package sftpconn

import (
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Channel is the SFTP channel surface the transfer operations need.
// The production implementation wraps *sftp.Client; tests substitute an
// in-memory implementation.
type Channel interface {
	// Stat returns file info for a remote path.
	Stat(path string) (os.FileInfo, error)
	// ReadDir lists the entries of a remote directory.
	ReadDir(path string) ([]os.FileInfo, error)
	// MkdirAll creates a remote directory, including parents.
	MkdirAll(path string) error
	// Open opens a remote file for reading.
	Open(path string) (io.ReadCloser, error)
	// Create opens a remote file for writing, truncating it if it exists.
	Create(path string) (io.WriteCloser, error)
	// Remove deletes a remote file.
	Remove(path string) error
	// Connected reports whether the channel is still usable.
	Connected() bool
	// Close releases the channel.
	Close() error
}

// sftpChannel adapts *sftp.Client to the Channel interface. Liveness is
// tracked by a watcher on the underlying SSH connection, since pkg/sftp
// exposes no liveness query of its own.
type sftpChannel struct {
	client *sftp.Client
	alive  *atomic.Bool
}

var _ Channel = (*sftpChannel)(nil)

func (ch *sftpChannel) Stat(path string) (os.FileInfo, error)      { return ch.client.Stat(path) }
func (ch *sftpChannel) ReadDir(path string) ([]os.FileInfo, error) { return ch.client.ReadDir(path) }
func (ch *sftpChannel) MkdirAll(path string) error                 { return ch.client.MkdirAll(path) }
func (ch *sftpChannel) Remove(path string) error                   { return ch.client.Remove(path) }

func (ch *sftpChannel) Open(path string) (io.ReadCloser, error) {
	return ch.client.Open(path)
}

func (ch *sftpChannel) Create(path string) (io.WriteCloser, error) {
	return ch.client.Create(path)
}

func (ch *sftpChannel) Connected() bool {
	return ch.alive.Load()
}

func (ch *sftpChannel) Close() error {
	ch.alive.Store(false)
	return ch.client.Close()
}

// liveConn holds the session and channel handles of a connected
// Connector together, so a channel without a session is unrepresentable.
type liveConn struct {
	session *ssh.Client
	channel Channel
}

// Connector owns the lifecycle of one SSH session and one SFTP channel
// built on top of it. A Connector starts disconnected; Connect
// establishes the handles and Disconnect releases them.
//
// A Connector must not be used by more than one goroutine concurrently.
// Use one Connector (or a ConnectorPool) per concurrent unit of work.
type Connector struct {
	config Config
	log    *zap.Logger
	conn   *liveConn
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used for lifecycle and transfer tracing.
// The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Connector) {
		if log != nil {
			c.log = log
		}
	}
}

// NewConnector creates a disconnected Connector for the given config.
func NewConnector(config Config, opts ...Option) *Connector {
	c := &Connector{
		config: config.WithDefaults(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConnectorWithChannel creates a Connector already bound to the given
// channel. This is primarily used for testing with mock channels.
func NewConnectorWithChannel(config Config, channel Channel, opts ...Option) *Connector {
	c := NewConnector(config, opts...)
	c.conn = &liveConn{channel: channel}
	return c
}

// IsConnected reports whether the Connector holds a live, connected
// channel.
func (c *Connector) IsConnected() bool {
	return c.conn != nil && c.conn.channel.Connected()
}

// Connect establishes the SSH session and opens the SFTP channel.
// Calling Connect on an already connected Connector is a no-op.
//
// The sequence is: load known hosts, resolve the key exchange type
// recorded for the host, select an authentication credential (private key
// takes precedence over password; neither present is a configuration
// error raised before any network attempt), dial with the configured
// timeout, then open and verify the SFTP channel. A failed Connect leaves
// the Connector disconnected.
func (c *Connector) Connect() error {
	if c.conn != nil {
		return nil
	}

	cfg := c.config
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var entries []HostKeyEntry
	if cfg.KnownHostsFile != "" {
		var err error
		entries, err = LoadKnownHosts(cfg.KnownHostsFile)
		if err != nil {
			return newConnectionError(cfg.Host, "load known hosts", err)
		}
		c.log.Debug("known hosts loaded",
			zap.String("path", cfg.KnownHostsFile),
			zap.Int("entries", len(entries)))
	}

	authMethods, chosen, err := buildAuthMethods(cfg)
	if err != nil {
		return err
	}
	c.log.Debug("authentication method selected",
		zap.String("host", cfg.Host),
		zap.String("auth_method", chosen))

	hostKeyCallback, err := c.buildHostKeyCallback()
	if err != nil {
		return newConnectionError(cfg.Host, "configure host key verification", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	}

	kexType, found, err := FindKeyExchangeType(cfg.Host, entries)
	if err != nil {
		return err
	}
	if found {
		clientConfig.HostKeyAlgorithms = []string{kexType}
		c.log.Debug("key exchange type found for host",
			zap.String("host", cfg.Host),
			zap.String("key_exchange_type", kexType))
	} else {
		c.log.Debug("no key exchange type recorded for host; using transport defaults",
			zap.String("host", cfg.Host))
	}

	c.log.Debug("connecting",
		zap.String("address", addr),
		zap.String("user", cfg.User),
		zap.Duration("timeout", cfg.Timeout))

	session, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return newConnectionError(cfg.Host, "open session", err)
	}

	channel, err := sftp.NewClient(session, sftp.MaxPacket(1<<15))
	if err != nil {
		_ = session.Close()
		return newConnectionError(cfg.Host, "open sftp channel", err)
	}

	// Sanity probe: the subsystem accepted the channel open, now make
	// sure it actually speaks SFTP before handing it out.
	if _, err := channel.Getwd(); err != nil {
		_ = channel.Close()
		_ = session.Close()
		return newConnectionError(cfg.Host, "sftp channel not usable", err)
	}

	alive := &atomic.Bool{}
	alive.Store(true)
	go func() {
		_ = session.Wait()
		alive.Store(false)
	}()

	c.conn = &liveConn{
		session: session,
		channel: &sftpChannel{client: channel, alive: alive},
	}
	c.log.Debug("sftp channel opened", zap.String("host", cfg.Host))
	return nil
}

// Disconnect releases the channel and session handles. It is safe to call
// repeatedly and before any Connect.
func (c *Connector) Disconnect() {
	if c.conn == nil {
		return
	}
	if err := c.conn.channel.Close(); err != nil {
		c.log.Debug("error closing sftp channel", zap.Error(err))
	}
	if c.conn.session != nil {
		if err := c.conn.session.Close(); err != nil {
			c.log.Debug("error closing session", zap.Error(err))
		}
	}
	c.conn = nil
	c.log.Debug("disconnected", zap.String("host", c.config.Host))
}

// RunCommand validates that the Connector is connected, then runs op
// against the live channel. Any error from op is re-wrapped as an
// operation-kind TransferError with the original cause preserved, so
// callers never see transport-specific error types.
func (c *Connector) RunCommand(op func(Channel) error) error {
	if !c.IsConnected() {
		return newNotConnectedError()
	}
	if err := op(c.conn.channel); err != nil {
		return wrapOperationError(c.config.Host, err)
	}
	return nil
}

// RunCommandWithResult is the result-bearing form of
// Connector.RunCommand. It is a package function because Go methods
// cannot be generic.
func RunCommandWithResult[T any](c *Connector, op func(Channel) (T, error)) (T, error) {
	var zero T
	if !c.IsConnected() {
		return zero, newNotConnectedError()
	}
	result, err := op(c.conn.channel)
	if err != nil {
		return zero, wrapOperationError(c.config.Host, err)
	}
	return result, nil
}

// wrapOperationError wraps transport errors uniformly, leaving errors
// that already carry a kind untouched.
func wrapOperationError(host string, err error) error {
	if kind := ErrorKindOf(err); kind != "" {
		return err
	}
	return newOperationError(host, err)
}

// buildAuthMethods selects the authentication credential: a configured
// private key takes precedence, then a password; neither present is a
// configuration error raised before any network attempt. The returned
// name is the wire name of the chosen method.
func buildAuthMethods(cfg Config) ([]ssh.AuthMethod, string, error) {
	var (
		method ssh.AuthMethod
		chosen string
	)

	switch {
	case cfg.hasPrivateKey():
		keyData, err := os.ReadFile(cfg.PrivateKeyFilePath)
		if err != nil {
			return nil, "", newConfigurationError(
				fmt.Sprintf("read private key file %s: %v", cfg.PrivateKeyFilePath, err))
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, "", newConfigurationError(
				fmt.Sprintf("parse private key %s: %v", cfg.PrivateKeyFilePath, err))
		}
		method = ssh.PublicKeys(signer)
		chosen = AuthMethodPublicKey

	case cfg.hasPassword():
		method = ssh.Password(cfg.Password)
		chosen = AuthMethodPassword

	default:
		return nil, "", newConfigurationError(
			"no authentication credential configured: set PrivateKeyFilePath or Password")
	}

	if len(cfg.PreferredAuthMethods) > 0 && !slices.Contains(cfg.PreferredAuthMethods, chosen) {
		return nil, "", newConfigurationError(
			fmt.Sprintf("selected auth method %q is not among preferred auth methods %v",
				chosen, cfg.PreferredAuthMethods))
	}

	return []ssh.AuthMethod{method}, chosen, nil
}

// buildHostKeyCallback returns the host key verification policy. Disabling
// strict checking weakens security posture, so it is logged loudly rather
// than silently honoured.
func (c *Connector) buildHostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.config.DisableStrictHostKeyChecking {
		c.log.Warn("strict host key checking disabled; the host's identity will not be verified",
			zap.String("host", c.config.Host),
			zap.Int("port", c.config.Port))
		return ssh.InsecureIgnoreHostKey(), nil
	}

	callback, err := knownhosts.New(c.config.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts file %s: %w", c.config.KnownHostsFile, err)
	}
	return callback, nil
}

package sftpconn

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ConnectorPool keeps connected Connectors for reuse across units of
// work. A borrowed Connector is owned exclusively by its borrower until
// returned; the pool never hands the same Connector to two callers at
// once, matching the one-Connector-per-unit-of-work concurrency model.
type ConnectorPool struct {
	mu      sync.RWMutex
	idle    map[string][]*idleConnector
	maxIdle time.Duration
	done    chan struct{}
	closed  bool

	borrowed int

	// connect is swappable in tests.
	connect func(Config) (*Connector, error)

	opts []Option
}

type idleConnector struct {
	connector *Connector
	lastUsed  time.Time
}

// NewConnectorPool creates a connector pool. maxIdle specifies how long
// idle connectors are kept before being disconnected.
func NewConnectorPool(maxIdle time.Duration, opts ...Option) *ConnectorPool {
	pool := &ConnectorPool{
		idle:    make(map[string][]*idleConnector),
		maxIdle: maxIdle,
		done:    make(chan struct{}),
		opts:    opts,
	}
	pool.connect = func(cfg Config) (*Connector, error) {
		c := NewConnector(cfg, pool.opts...)
		if err := c.Connect(); err != nil {
			return nil, err
		}
		return c, nil
	}

	go pool.reapLoop()

	return pool
}

// Acquire returns a connected Connector for the given config, reusing an
// idle one when available. The caller owns the Connector exclusively and
// must return it with Release when done.
func (p *ConnectorPool) Acquire(config Config) (*Connector, error) {
	config = config.WithDefaults()
	key := connectorKey(config)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, newConfigurationError("connector pool is closed")
	}
	for {
		conns := p.idle[key]
		if len(conns) == 0 {
			break
		}
		ic := conns[len(conns)-1]
		p.idle[key] = conns[:len(conns)-1]
		if ic.connector.IsConnected() {
			p.borrowed++
			p.mu.Unlock()
			return ic.connector, nil
		}
		ic.connector.Disconnect()
	}
	p.mu.Unlock()

	conn, err := p.connect(config)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.borrowed++
	p.mu.Unlock()
	return conn, nil
}

// Release returns a borrowed Connector to the pool. Dead connectors are
// disconnected and discarded instead of being parked.
func (p *ConnectorPool) Release(conn *Connector) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.borrowed > 0 {
		p.borrowed--
	}

	if p.closed || !conn.IsConnected() {
		conn.Disconnect()
		return
	}

	key := connectorKey(conn.config)
	p.idle[key] = append(p.idle[key], &idleConnector{
		connector: conn,
		lastUsed:  time.Now(),
	})
}

// Close disconnects all idle connectors and stops the reaper. Borrowed
// connectors are disconnected as they are released.
func (p *ConnectorPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.done)

	for key, conns := range p.idle {
		for _, ic := range conns {
			ic.connector.Disconnect()
		}
		delete(p.idle, key)
	}
}

// CloseIdle disconnects connectors that have been idle longer than
// maxIdle.
func (p *ConnectorPool) CloseIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for key, conns := range p.idle {
		kept := conns[:0]
		for _, ic := range conns {
			if now.Sub(ic.lastUsed) > p.maxIdle {
				ic.connector.Disconnect()
			} else {
				kept = append(kept, ic)
			}
		}
		if len(kept) == 0 {
			delete(p.idle, key)
		} else {
			p.idle[key] = kept
		}
	}
}

func (p *ConnectorPool) reapLoop() {
	interval := p.maxIdle
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.CloseIdle()
		case <-p.done:
			return
		}
	}
}

// PoolStats contains pool statistics.
type PoolStats struct {
	// Idle is the number of parked connectors.
	Idle int
	// Borrowed is the number of connectors currently checked out.
	Borrowed int
}

// Stats returns current pool statistics.
func (p *ConnectorPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var idle int
	for _, conns := range p.idle {
		idle += len(conns)
	}
	return PoolStats{Idle: idle, Borrowed: p.borrowed}
}

// connectorKey derives a stable cache key from the connection
// parameters. Credentials participate so that configs differing only in
// auth never share a connector.
func connectorKey(config Config) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s",
		config.Host,
		config.Port,
		config.User,
		config.PrivateKeyFilePath,
		config.Password,
		strings.Join(config.PreferredAuthMethods, ","),
	)
	return hex.EncodeToString(h.Sum(nil))
}

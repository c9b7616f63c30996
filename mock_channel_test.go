package sftpconn

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"
	"time"
)

// mockFileInfo implements os.FileInfo for testing.
type mockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() os.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// mockChannel is an in-memory Channel implementation with per-operation
// call counters and error injection.
type mockChannel struct {
	mu        sync.Mutex
	dirs      map[string]bool
	files     map[string][]byte
	connected bool

	statCalls    int
	readDirCalls int
	mkdirCalls   int
	openCalls    int
	createCalls  int
	removeCalls  int

	errors map[string]error // op name -> injected error
}

var _ Channel = (*mockChannel)(nil)

func newMockChannel() *mockChannel {
	return &mockChannel{
		dirs:      map[string]bool{"/": true},
		files:     make(map[string][]byte),
		connected: true,
		errors:    make(map[string]error),
	}
}

func (m *mockChannel) addDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p != "/" && p != "." {
		m.dirs[p] = true
		p = path.Dir(p)
	}
}

func (m *mockChannel) addFile(p string, content []byte) {
	m.addDir(path.Dir(p))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = content
}

func (m *mockChannel) setError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
}

func (m *mockChannel) Stat(p string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statCalls++
	if err := m.errors["stat"]; err != nil {
		return nil, err
	}
	if m.dirs[p] {
		return &mockFileInfo{name: path.Base(p), mode: fs.ModeDir | 0o755, isDir: true}, nil
	}
	if content, ok := m.files[p]; ok {
		return &mockFileInfo{name: path.Base(p), size: int64(len(content)), mode: 0o644}, nil
	}
	return nil, fs.ErrNotExist
}

func (m *mockChannel) ReadDir(p string) ([]os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDirCalls++
	if err := m.errors["readdir"]; err != nil {
		return nil, err
	}
	if !m.dirs[p] {
		return nil, fs.ErrNotExist
	}

	var infos []os.FileInfo
	for d := range m.dirs {
		if path.Dir(d) == p && d != p {
			infos = append(infos, &mockFileInfo{name: path.Base(d), mode: fs.ModeDir | 0o755, isDir: true})
		}
	}
	for f, content := range m.files {
		if path.Dir(f) == p {
			infos = append(infos, &mockFileInfo{name: path.Base(f), size: int64(len(content)), mode: 0o644})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (m *mockChannel) MkdirAll(p string) error {
	m.mu.Lock()
	m.mkdirCalls++
	if err := m.errors["mkdir"]; err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	m.addDir(p)
	return nil
}

func (m *mockChannel) Open(p string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++
	if err := m.errors["open"]; err != nil {
		return nil, err
	}
	content, ok := m.files[p]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *mockChannel) Create(p string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if err := m.errors["create"]; err != nil {
		return nil, err
	}
	return &mockRemoteFile{channel: m, path: p}, nil
}

func (m *mockChannel) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls++
	if err := m.errors["remove"]; err != nil {
		return err
	}
	if _, ok := m.files[p]; !ok {
		return fs.ErrNotExist
	}
	delete(m.files, p)
	return nil
}

func (m *mockChannel) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockChannel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *mockChannel) fileContent(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[p]
	return content, ok
}

// mockRemoteFile buffers writes and commits them to the channel on Close.
type mockRemoteFile struct {
	channel *mockChannel
	path    string
	buf     bytes.Buffer
}

func (f *mockRemoteFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *mockRemoteFile) Close() error {
	f.channel.mu.Lock()
	defer f.channel.mu.Unlock()
	f.channel.files[f.path] = f.buf.Bytes()
	return nil
}

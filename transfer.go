package sftpconn

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// PathMapper computes a local directory or filename for a remote file
// discovered at (remotePath, remoteFilename). Mappers must be pure and
// stateless; recursive downloads invoke them once per discovered file.
type PathMapper func(remotePath, remoteFilename string) string

// FixedPath returns a PathMapper that ignores its arguments and always
// yields p. It covers the common case where the local destination is a
// fixed value rather than computed.
func FixedPath(p string) PathMapper {
	return func(string, string) string { return p }
}

// changeDirectory verifies that dir exists and is a directory on the
// remote side. pkg/sftp addresses everything by absolute path, so this
// probe is the stateless equivalent of changing into the directory.
func changeDirectory(ch Channel, dir string) error {
	info, err := ch.Stat(dir)
	if err != nil {
		return fmt.Errorf("change directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("change directory %s: not a directory", dir)
	}
	return nil
}

// PutFile writes data to filename inside remotePath, creating the remote
// directory first when it does not exist yet. The transport offers no
// existence check short of attempting the directory change, hence the
// create-then-retry fallback.
func (c *Connector) PutFile(remotePath, filename string, data io.Reader) error {
	return c.RunCommand(func(ch Channel) error {
		if err := changeDirectory(ch, remotePath); err != nil {
			c.log.Debug("remote directory missing; creating it",
				zap.String("remote_path", remotePath))
			if err := ch.MkdirAll(remotePath); err != nil {
				return fmt.Errorf("create directory %s: %w", remotePath, err)
			}
			if err := changeDirectory(ch, remotePath); err != nil {
				return err
			}
		}

		target := path.Join(remotePath, filename)
		w, err := ch.Create(target)
		if err != nil {
			return fmt.Errorf("create remote file %s: %w", target, err)
		}
		if _, err := io.Copy(w, data); err != nil {
			_ = w.Close()
			return fmt.Errorf("write remote file %s: %w", target, err)
		}
		return w.Close()
	})
}

// GetAndStoreFile downloads remotePath/remoteFilename into the local
// directory computed by localPath, under the name computed by
// localFilename. The local directory is created when absent and an
// existing local file of the same name is overwritten.
func (c *Connector) GetAndStoreFile(remotePath, remoteFilename string, localPath, localFilename PathMapper) error {
	return c.RunCommand(func(ch Channel) error {
		return getAndStoreFile(ch, remotePath, remoteFilename, localPath, localFilename)
	})
}

// GetAndStoreFileIn downloads remotePath/remoteFilename into localDir,
// keeping the remote filename. Convenience form of GetAndStoreFile.
func (c *Connector) GetAndStoreFileIn(remotePath, remoteFilename, localDir string) error {
	return c.GetAndStoreFile(remotePath, remoteFilename, FixedPath(localDir), FixedPath(remoteFilename))
}

func getAndStoreFile(ch Channel, remotePath, remoteFilename string, localPath, localFilename PathMapper) error {
	if err := changeDirectory(ch, remotePath); err != nil {
		return err
	}

	localDir := localPath(remotePath, remoteFilename)
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return fmt.Errorf("create local directory %s: %w", localDir, err)
	}

	source := path.Join(remotePath, remoteFilename)
	r, err := ch.Open(source)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", source, err)
	}
	defer r.Close()

	target := filepath.Join(localDir, localFilename(remotePath, remoteFilename))
	w, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create local file %s: %w", target, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy %s to %s: %w", source, target, err)
	}
	return w.Close()
}

// GetFileContent downloads remotePath/remoteFilename and returns its
// content as a UTF-8 string, fully materialized.
func (c *Connector) GetFileContent(remotePath, remoteFilename string) (string, error) {
	return RunCommandWithResult(c, func(ch Channel) (string, error) {
		if err := changeDirectory(ch, remotePath); err != nil {
			return "", err
		}

		source := path.Join(remotePath, remoteFilename)
		r, err := ch.Open(source)
		if err != nil {
			return "", fmt.Errorf("open remote file %s: %w", source, err)
		}
		defer r.Close()

		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read remote file %s: %w", source, err)
		}
		return string(content), nil
	})
}

// ListFiles returns the names of the non-directory entries of remotePath,
// in the order the transport reports them. No other filtering is applied.
func (c *Connector) ListFiles(remotePath string) ([]string, error) {
	return c.listEntries(remotePath, false)
}

// ListDirectories returns the names of the directory entries of
// remotePath, in the order the transport reports them.
func (c *Connector) ListDirectories(remotePath string) ([]string, error) {
	return c.listEntries(remotePath, true)
}

func (c *Connector) listEntries(remotePath string, directories bool) ([]string, error) {
	return RunCommandWithResult(c, func(ch Channel) ([]string, error) {
		if err := changeDirectory(ch, remotePath); err != nil {
			return nil, err
		}

		infos, err := ch.ReadDir(remotePath)
		if err != nil {
			return nil, fmt.Errorf("list directory %s: %w", remotePath, err)
		}

		names := make([]string, 0, len(infos))
		for _, info := range infos {
			if info.IsDir() == directories {
				names = append(names, info.Name())
			}
		}
		return names, nil
	})
}

// GetAndStoreAllFiles mirrors the remote subtree rooted at remotePath to
// local storage: every file directly under remotePath is downloaded
// first, then each subdirectory is recursed into with the same mappers.
// Traversal order across sibling directories is whatever order the
// transport's listing returns. No cycle detection is performed, so a
// remote symlink cycle will recurse without bound.
func (c *Connector) GetAndStoreAllFiles(remotePath string, localPath, localFilename PathMapper) error {
	return c.RunCommand(func(ch Channel) error {
		return getAndStoreAllFiles(ch, remotePath, localPath, localFilename)
	})
}

func getAndStoreAllFiles(ch Channel, remotePath string, localPath, localFilename PathMapper) error {
	if err := changeDirectory(ch, remotePath); err != nil {
		return err
	}

	infos, err := ch.ReadDir(remotePath)
	if err != nil {
		return fmt.Errorf("list directory %s: %w", remotePath, err)
	}

	for _, info := range infos {
		if !info.IsDir() {
			if err := getAndStoreFile(ch, remotePath, info.Name(), localPath, localFilename); err != nil {
				return err
			}
		}
	}

	for _, info := range infos {
		if info.IsDir() {
			if err := getAndStoreAllFiles(ch, path.Join(remotePath, info.Name()), localPath, localFilename); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteRemoteFile removes remoteFilename from remotePath.
func (c *Connector) DeleteRemoteFile(remotePath, remoteFilename string) error {
	return c.RunCommand(func(ch Channel) error {
		if err := changeDirectory(ch, remotePath); err != nil {
			return err
		}

		target := path.Join(remotePath, remoteFilename)
		c.log.Debug("deleting remote file", zap.String("remote_file", target))
		if err := ch.Remove(target); err != nil {
			return fmt.Errorf("remove remote file %s: %w", target, err)
		}
		return nil
	})
}

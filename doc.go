// Package sftpconn manages the lifecycle of an SSH session with an SFTP
// channel on top of it, and provides transfer operations through that
// channel.
//
// This package provides:
//   - A Connector owning exactly one session and one SFTP channel, with
//     explicit Connect/Disconnect lifecycle and private-key or password
//     authentication
//   - Host key handling backed by a known_hosts file, including lookup of
//     the key exchange algorithm recorded for a host
//   - Transfer operations: upload, single and recursive download, listing,
//     content retrieval, and deletion
//   - A ConnectorPool for reusing connectors across units of work
//
// # Basic Usage
//
// Construct a Connector, connect, transfer, disconnect:
//
//	config := sftpconn.Config{
//		Host:               "example.com",
//		User:               "deploy",
//		PrivateKeyFilePath: "/home/deploy/.ssh/id_ed25519",
//		KnownHostsFile:     "/home/deploy/.ssh/known_hosts",
//	}
//
//	connector := sftpconn.NewConnector(config, sftpconn.WithLogger(log))
//	if err := connector.Connect(); err != nil {
//		return err
//	}
//	defer connector.Disconnect()
//
//	err := connector.PutFile("/data/incoming", "report.csv", file)
//
// All failures surface as *TransferError with a kind tag and the original
// cause attached:
//
//	if sftpconn.IsNotConnected(err) {
//		// connector.Connect was never called, or the session dropped
//	}
//
// # Recursive Downloads
//
// GetAndStoreAllFiles mirrors a remote subtree; the caller supplies two
// mapping functions that compute the local directory and filename for
// each discovered remote file:
//
//	err := connector.GetAndStoreAllFiles("/data/outgoing",
//		func(remotePath, _ string) string {
//			return filepath.Join("/var/spool", filepath.Base(remotePath))
//		},
//		func(_, remoteFilename string) string {
//			return remoteFilename
//		})
//
// A single Connector must not be used by more than one goroutine
// concurrently. For concurrent transfers, use one Connector per unit of
// work, or a ConnectorPool:
//
//	pool := sftpconn.NewConnectorPool(5 * time.Minute)
//	defer pool.Close()
//
//	connector, err := pool.Acquire(config)
//	if err != nil {
//		return err
//	}
//	defer pool.Release(connector)
package sftpconn

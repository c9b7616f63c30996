package sftpconn

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gossh "golang.org/x/crypto/ssh"
)

// generateTestRSAKey creates a test RSA private key and returns both the
// PEM-encoded key content and a path to a temp file containing the key.
func generateTestRSAKey(t *testing.T) (string, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	privateKeyBytes := x509.MarshalPKCS1PrivateKey(privateKey)
	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privateKeyBytes,
	}))

	tmpDir := t.TempDir()
	keyPath := filepath.Join(tmpDir, "test_key")
	if err := os.WriteFile(keyPath, []byte(privateKeyPEM), 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	return privateKeyPEM, keyPath
}

// testPublicKeyLine returns the authorized-keys form of a fresh RSA
// public key, for building known_hosts lines.
func testPublicKeyLine(t *testing.T) string {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	publicKey, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to create SSH public key: %v", err)
	}

	return strings.TrimSpace(string(gossh.MarshalAuthorizedKey(publicKey)))
}

// writeKnownHostsFile writes a known_hosts file where each entry is
// "host <generated public key>" and returns its path.
func writeKnownHostsFile(t *testing.T, hosts ...string) string {
	t.Helper()

	var b strings.Builder
	for _, host := range hosts {
		fmt.Fprintf(&b, "%s %s\n", host, testPublicKeyLine(t))
	}

	path := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatalf("failed to write known_hosts file: %v", err)
	}
	return path
}

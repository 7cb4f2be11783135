package encryption

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"baucam/internal/timelapse"
)

// AgeEncryptor implements timelapse.Encryptor using filippo.io/age. Backups
// are encrypted to every recipient listed in the recipients file, so the rig
// only ever holds public keys.
type AgeEncryptor struct {
	recipientsPath string
}

var _ timelapse.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor reading recipients from path.
func NewAgeEncryptor(recipientsPath string) *AgeEncryptor {
	return &AgeEncryptor{recipientsPath: recipientsPath}
}

// Extension implements timelapse.Encryptor.
func (e *AgeEncryptor) Extension() string { return ".age" }

// Encrypt reads plaintext from r and writes age ciphertext to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipients, err := e.loadRecipients()
	if err != nil {
		return fmt.Errorf("loading recipients: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// IsConfigured reports whether the recipients file exists.
func (e *AgeEncryptor) IsConfigured() bool {
	_, err := os.Stat(e.recipientsPath)
	return err == nil
}

func (e *AgeEncryptor) loadRecipients() ([]age.Recipient, error) {
	f, err := os.Open(e.recipientsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", e.recipientsPath, err)
	}
	return recipients, nil
}

// GenerateKeyPair creates a new X25519 identity at identityPath and appends
// its recipient to recipientsPath. The identity is meant to be moved off the
// rig; only the recipients file is needed for backups.
func GenerateKeyPair(identityPath, recipientsPath string) (string, error) {
	if _, err := os.Stat(identityPath); err == nil {
		return "", fmt.Errorf("identity file already exists at %s", identityPath)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{identityPath, recipientsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return "", fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return "", fmt.Errorf("writing identity: %w", err)
	}

	recipient := identity.Recipient().String()
	f, err := os.OpenFile(recipientsPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening recipients file: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, recipient+"\n"); err != nil {
		return "", fmt.Errorf("writing recipient: %w", err)
	}
	return recipient, nil
}

// Decrypt reads age ciphertext from r and writes plaintext to w using the
// identities in identityPath.
func Decrypt(identityPath string, r io.Reader, w io.Writer) error {
	f, err := os.Open(identityPath)
	if err != nil {
		return fmt.Errorf("opening identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return fmt.Errorf("parsing identities: %w", err)
	}

	decReader, err := age.Decrypt(r, identities...)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

package encryption

import (
	"io"

	"baucam/internal/timelapse"
)

// NoneEncryptor passes data through unchanged.
type NoneEncryptor struct{}

var _ timelapse.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Extension() string { return "" }

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

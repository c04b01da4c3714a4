package encryption

import (
	"bytes"
	"fmt"
	"io"

	"educahub/internal/hub"
)

// testHeader is prepended by TestEncryptor so sealed data visibly differs
// from plaintext while staying deterministic.
var testHeader = []byte("EHENC\x00\x00\x00")

// TestEncryptor is a deterministic, keyless encryptor for tests.
type TestEncryptor struct {
	setupCalled bool
}

var _ hub.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup() error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

// PlainEncryptor stores values unchanged. Selected by encryption type "none".
type PlainEncryptor struct{}

var _ hub.Encryptor = PlainEncryptor{}

func (PlainEncryptor) Setup() error { return nil }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (PlainEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (PlainEncryptor) IsConfigured() bool { return true }

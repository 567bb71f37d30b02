package persist

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"zapd/internal/core"
)

const (
	magic              = "ZAPD"
	formatVersion byte = 0x01
	nonceSize          = 12
)

// Save writes tables to path under the layout magic|version|nonce|ciphertext:
// serialize, gzip, AES-256-GCM seal with key, write. The file is built fully
// in memory and written with a single os.WriteFile so a failure never
// publishes a partial snapshot.
func Save(path string, key [32]byte, tables []TableSnapshot) error {
	plain := Encode(tables)

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(plain); err != nil {
		return &core.IOError{Err: err}
	}
	if err := gw.Close(); err != nil {
		return &core.IOError{Err: err}
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return &core.IOError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return &core.IOError{Err: err}
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return &core.IOError{Err: err}
	}
	ciphertext := gcm.Seal(nil, nonce, compressed.Bytes(), nil)

	out := make([]byte, 0, len(magic)+1+nonceSize+len(ciphertext))
	out = append(out, magic...)
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(path, out, 0o600); err != nil {
		return &core.IOError{Err: err}
	}
	return nil
}

// Load reverses Save, reporting each failure mode with its own typed
// error, and never partially applying a corrupt or tampered file.
func Load(path string, key [32]byte) ([]TableSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.IOError{Err: err}
	}
	if len(data) < len(magic)+1+nonceSize {
		return nil, &core.BadFormatError{Reason: "file too short to contain header"}
	}
	var gotMagic [4]byte
	copy(gotMagic[:], data[:4])
	if string(gotMagic[:]) != magic {
		return nil, &core.BadMagicError{Got: gotMagic}
	}
	version := data[4]
	if version != formatVersion {
		return nil, &core.VersionMismatchError{Got: version}
	}
	nonce := data[5 : 5+nonceSize]
	ciphertext := data[5+nonceSize:]

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, &core.IOError{Err: err}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &core.IOError{Err: err}
	}
	compressed, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &core.AuthenticationFailedError{}
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, &core.DecompressionFailedError{Err: err}
	}
	defer gr.Close()
	plain, err := io.ReadAll(gr)
	if err != nil {
		return nil, &core.DecompressionFailedError{Err: err}
	}

	return Decode(plain)
}

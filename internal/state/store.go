package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readDocument loads and decodes the state file. A missing file returns
// (nil, nil): first runs start from an empty document.
func readDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	plain, err := Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypting state file: %w", err)
	}

	var doc Document
	if err := decodeJSONStrict(plain, &doc); err != nil {
		return nil, fmt.Errorf("decoding state file %s: %w", path, err)
	}
	return &doc, nil
}

// writeDocument encodes the document as stable indented JSON, encrypts it
// when a key is configured, and writes it atomically and durably. Returns
// the bytes that hit the disk so snapshots upload exactly what was saved.
func writeDocument(path string, doc *Document) ([]byte, error) {
	data, err := marshalStable(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}

	sealed, err := Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypting state: %w", err)
	}

	if err := writeFileAtomicDurable(path, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("writing state file: %w", err)
	}
	return sealed, nil
}

// marshalStable keeps the file diffable: indented, key-sorted (map keys
// sort under encoding/json), trailing newline.
func marshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func decodeJSONStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber opens every backup file: "SPM__BKP"
var MagicNumber = [8]byte{'S', 'P', 'M', '_', '_', 'B', 'K', 'P'}

// FormatVersion is the current backup format version.
const FormatVersion = 1

// maxHeaderSize bounds the header read before it is authenticated.
const maxHeaderSize = 64 * 1024

// Header is stored in the clear and covered by the HMAC.
type Header struct {
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	CredentialCount int       `json:"credential_count"`
	ChecksumAlgo    string    `json:"checksum_algorithm"`
}

// Metadata mirrors the vault metadata record.
type Metadata struct {
	Exists          bool   `json:"exists"`
	MasterHash      string `json:"master_hash"`
	EncryptedMarker []byte `json:"enc_token"`
}

// Credential is one stored entry. Secret stays vault-key ciphertext; the
// backup never sees a plaintext secret.
type Credential struct {
	Site      string    `json:"site"`
	Username  string    `json:"username"`
	Secret    []byte    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is the encrypted payload of a backup.
type Snapshot struct {
	Metadata    Metadata     `json:"metadata"`
	Credentials []Credential `json:"credentials"`
}

// WriteHeader writes the magic number and header to the writer.
func WriteHeader(w io.Writer, header *Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := writeUint32(w, uint32(len(headerJSON))); err != nil {
		return err
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ReadHeader reads and validates the magic number and header.
func ReadHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrInvalidMagic
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	headerLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if headerLen > maxHeaderSize {
		return nil, fmt.Errorf("header too large: %d bytes", headerLen)
	}

	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}

	if header.Version < 1 || header.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, nil
}

// EncodeSnapshot encodes the snapshot to JSON bytes.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot decodes JSON bytes to a snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func writeUint32(w io.Writer, v uint32) error {
	if err := binary.Write(w, binary.BigEndian, v); err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	return nil
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, fmt.Errorf("failed to read length: %w", err)
	}
	return v, nil
}

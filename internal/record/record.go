// Package record persists the provisioning record: whether the device is
// provisioned, with which network, and the address it obtained.
//
// Every mutation is followed by an explicit commit of the underlying store;
// a write is only considered landed once that commit returns nil.
package record

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
)

const (
	// Key is the NVS key holding the encoded record.
	Key = "wifi.prov"

	// MaxSSIDLen is the longest network name a record can carry.
	MaxSSIDLen = 32

	// MaxIPLen is the longest textual address a record can carry.
	MaxIPLen = 16
)

// ErrCorrupt is returned by Read when the stored blob cannot be decoded.
var ErrCorrupt = errors.New("provisioning record corrupt")

// Record is the durable provisioning outcome.
type Record struct {
	SSID    string `cbor:"1,keyasint" json:"ssid"`
	IP      string `cbor:"2,keyasint" json:"ip"`
	Present bool   `cbor:"3,keyasint" json:"present"`
}

// Provisioned reports whether the record names a network. A record with an
// empty SSID is treated as absent.
func (r Record) Provisioned() bool {
	return r.Present && r.SSID != ""
}

// Validate checks the field length limits.
func (r Record) Validate() error {
	if len(r.SSID) > MaxSSIDLen {
		return fmt.Errorf("ssid is %d bytes, max %d", len(r.SSID), MaxSSIDLen)
	}
	if len(r.IP) > MaxIPLen {
		return fmt.Errorf("ip is %d bytes, max %d", len(r.IP), MaxIPLen)
	}
	return nil
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create record CBOR decoder mode: %v", err))
	}
}

// Encode returns the canonical CBOR form of r.
func Encode(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(r)
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := r.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return r, nil
}

// Store reads and writes the record in an NVS store.
type Store struct {
	nvs nvs.Store
}

// NewStore wraps an NVS store.
func NewStore(s nvs.Store) *Store {
	return &Store{nvs: s}
}

// Read returns the stored record. A missing key yields the zero Record and
// no error.
func (s *Store) Read() (Record, error) {
	data, err := s.nvs.GetBlob(Key)
	if errors.Is(err, nvs.ErrNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read provisioning record: %w", err)
	}
	return Decode(data)
}

// Write stores r and commits it. A failed commit leaves the store's staged
// state as it was before the call, so a later commit by another user of the
// same store cannot land the record.
func (s *Store) Write(r Record) error {
	data, err := Encode(r)
	if err != nil {
		return fmt.Errorf("failed to encode provisioning record: %w", err)
	}
	prior, err := s.staged()
	if err != nil {
		return err
	}
	if err := s.nvs.SetBlob(Key, data); err != nil {
		return fmt.Errorf("failed to stage provisioning record: %w", err)
	}
	if err := s.nvs.Commit(); err != nil {
		return s.revert(prior, fmt.Errorf("failed to commit provisioning record: %w", err))
	}
	return nil
}

// Erase removes the record and commits the removal. A failed commit restores
// the staged state like Write does.
func (s *Store) Erase() error {
	prior, err := s.staged()
	if err != nil {
		return err
	}
	if err := s.nvs.Erase(Key); err != nil {
		return fmt.Errorf("failed to stage provisioning record erase: %w", err)
	}
	if err := s.nvs.Commit(); err != nil {
		return s.revert(prior, fmt.Errorf("failed to commit provisioning record erase: %w", err))
	}
	return nil
}

// staged returns the value the store currently holds for Key, or nil when
// the key is absent.
func (s *Store) staged() ([]byte, error) {
	data, err := s.nvs.GetBlob(Key)
	if errors.Is(err, nvs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read provisioning record: %w", err)
	}
	return data, nil
}

// revert stages prior back under Key and returns cause.
func (s *Store) revert(prior []byte, cause error) error {
	var err error
	if prior == nil {
		err = s.nvs.Erase(Key)
	} else {
		err = s.nvs.SetBlob(Key, prior)
	}
	if err != nil {
		return fmt.Errorf("%w (restaging previous record: %v)", cause, err)
	}
	return cause
}

// Package store defines the key-value capability the claim queries run on.
//
// Keys are a short tag plus an optional discriminator. Values are opaque
// bytes; encoding belongs to the repo layer. Backends live in subpackages.
package store

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound indicates the key has no value.
var ErrNotFound = errors.New("not found")

const (
	TagClaim       = "claim"
	TagByRecipient = "claims_rc"
	TagByCreator   = "claims_cr"
	TagConfig      = "claim_cfg"
)

type Key struct {
	Tag string
	ID  string
}

func ClaimKey(id uint64) Key { return Key{Tag: TagClaim, ID: strconv.FormatUint(id, 10)} }

func RecipientIndexKey(recipient string) Key { return Key{Tag: TagByRecipient, ID: recipient} }

func CreatorIndexKey(creator string) Key { return Key{Tag: TagByCreator, ID: creator} }

func ConfigKey() Key { return Key{Tag: TagConfig} }

func (k Key) String() string {
	if k.ID == "" {
		return k.Tag
	}
	return k.Tag + "/" + k.ID
}

func (k Key) Bytes() []byte { return []byte(k.String()) }

// Reader reads values from one consistent snapshot.
type Reader interface {
	Get(key Key) ([]byte, error)
}

type Writer interface {
	Reader
	Put(key Key, value []byte) error
}

// Store hands out snapshots. View callbacks never observe writes committed
// after the snapshot was taken.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Writer) error) error
	Close() error
}

// internal/store/store.go - Imagery cache store

// Package store caches fetched imagery bytes so repeated requests for the same
// tile URL are served locally.
package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/valpere/tile_imagery/internal/config"
)

// ErrCorruptEntry is returned when a cached value cannot be decoded
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Entry is one cached HTTP response body
type Entry struct {
	ContentType string
	Data        []byte
}

// Store is a key/value cache for imagery responses. Get returns nil, nil on a
// miss.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Close() error
}

// Open creates the store selected by the cache configuration
func Open(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendNone, "":
		return Nop{}, nil
	case config.CacheBackendBBolt:
		s, err := OpenBolt(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheBackendRedis:
		return NewRedis(cfg.RedisAddr, cfg.Expiration), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) (*Entry, error) { return nil, nil }
func (Nop) Put(context.Context, string, *Entry) error   { return nil }
func (Nop) Close() error                                { return nil }

// encodeEntry lays out a 2-byte big-endian content-type length, the content
// type, then the data.
func encodeEntry(e *Entry) ([]byte, error) {
	if len(e.ContentType) > 0xffff {
		return nil, fmt.Errorf("content type too long: %d bytes", len(e.ContentType))
	}
	buf := make([]byte, 2+len(e.ContentType)+len(e.Data))
	binary.BigEndian.PutUint16(buf, uint16(len(e.ContentType)))
	copy(buf[2:], e.ContentType)
	copy(buf[2+len(e.ContentType):], e.Data)
	return buf, nil
}

func decodeEntry(buf []byte) (*Entry, error) {
	if len(buf) < 2 {
		return nil, ErrCorruptEntry
	}
	n := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+n {
		return nil, ErrCorruptEntry
	}
	data := make([]byte, len(buf)-2-n)
	copy(data, buf[2+n:])
	return &Entry{ContentType: string(buf[2 : 2+n]), Data: data}, nil
}

// Package security hashes account passwords with Argon2id in the PHC string
// format: $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
)

var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type params struct {
	memory  uint32
	passes  uint32
	lanes   uint8
	saltLen uint32
	keyLen  uint32
}

// paramsFrom clamps configured costs into a range that is both safe and
// bounded enough to keep login latency predictable.
func paramsFrom(cfg config.PasswordConfig) params {
	return params{
		memory:  uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:  uint32(clamp(cfg.ArgonTime, 1, 10)),
		lanes:   uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		saltLen: uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		keyLen:  uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

type Argon2idHasher struct {
	p params
}

func NewHasher(cfg config.PasswordConfig) *Argon2idHasher {
	return &Argon2idHasher{p: paramsFrom(cfg)}
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, h.p.passes, h.p.memory, h.p.lanes, h.p.keyLen)
	return encode(h.p, salt, key), nil
}

// Verify checks password against encoded using the costs stored in the hash,
// not the hasher's current configuration.
func (h *Argon2idHasher) Verify(password, encoded string) (bool, error) {
	parsed, err := parse(encoded)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), parsed.salt, parsed.p.passes, parsed.p.memory, parsed.p.lanes, parsed.p.keyLen)
	return subtle.ConstantTimeCompare(parsed.key, key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with different costs than
// the hasher is configured for. Malformed hashes always need a rehash.
func (h *Argon2idHasher) NeedsRehash(encoded string) bool {
	parsed, err := parse(encoded)
	if err != nil {
		return true
	}
	p := parsed.p
	return p.memory != h.p.memory || p.passes != h.p.passes || p.lanes != h.p.lanes || p.keyLen != h.p.keyLen
}

// HashPassword hashes with a one-off hasher built from cfg.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	return NewHasher(cfg).Hash(password)
}

func VerifyPassword(password, encoded string) (bool, error) {
	return (&Argon2idHasher{}).Verify(password, encoded)
}

type parsedHash struct {
	p    params
	salt []byte
	key  []byte
}

func encode(p params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.passes, p.lanes, b64.EncodeToString(salt), b64.EncodeToString(key))
}

func parse(encoded string) (parsedHash, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return parsedHash{}, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return parsedHash{}, ErrInvalidHash
	}

	var (
		out   parsedHash
		lanes uint32
	)
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &out.p.memory, &out.p.passes, &lanes); err != nil {
		return parsedHash{}, ErrInvalidHash
	}
	if lanes == 0 || lanes > 255 || out.p.passes == 0 {
		return parsedHash{}, ErrInvalidHash
	}
	out.p.lanes = uint8(lanes)

	var err error
	if out.salt, err = b64.DecodeString(fields[4]); err != nil || len(out.salt) == 0 {
		return parsedHash{}, ErrInvalidHash
	}
	if out.key, err = b64.DecodeString(fields[5]); err != nil || len(out.key) == 0 {
		return parsedHash{}, ErrInvalidHash
	}
	out.p.saltLen = uint32(len(out.salt))
	out.p.keyLen = uint32(len(out.key))
	return out, nil
}

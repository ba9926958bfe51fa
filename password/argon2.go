package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB   = 8 * 1024
	minSaltLength = 16
	minKeyLength  = 16
)

var (
	ErrMismatch      = errors.New("password does not match")
	ErrInvalidHash   = errors.New("password hash is malformed")
	ErrLength        = errors.New("password length out of range")
	ErrInvalidConfig = errors.New("invalid argon2 configuration")
)

type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinBytes and MaxBytes bound the raw password length. MaxBytes caps the
	// work an attacker can force per request.
	MinBytes int
	MaxBytes int
}

// DefaultConfig follows the RFC 9106 second recommended option.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MinBytes:    10,
		MaxBytes:    1024,
	}
}

// Argon2 is safe for concurrent use.
type Argon2 struct {
	cfg Config
}

func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("%w: memory must be >= %d KB", ErrInvalidConfig, minMemoryKB)
	case cfg.Time < 1:
		return nil, fmt.Errorf("%w: time must be >= 1", ErrInvalidConfig)
	case cfg.Parallelism < 1:
		return nil, fmt.Errorf("%w: parallelism must be >= 1", ErrInvalidConfig)
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("%w: salt length must be >= %d", ErrInvalidConfig, minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("%w: key length must be >= %d", ErrInvalidConfig, minKeyLength)
	case cfg.MinBytes < 1:
		return nil, fmt.Errorf("%w: min length must be >= 1", ErrInvalidConfig)
	case cfg.MaxBytes < cfg.MinBytes:
		return nil, fmt.Errorf("%w: max length below min length", ErrInvalidConfig)
	}

	return &Argon2{cfg: cfg}, nil
}

// Hash returns the PHC encoding of password. Bytes are hashed as given,
// without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.checkLength(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.cfg.Memory, a.cfg.Time, a.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare returns nil when password matches encoded, [ErrMismatch] when it
// does not and [ErrInvalidHash] when encoded cannot be parsed.
func (a *Argon2) Compare(password, encoded string) error {
	if err := a.checkLength(password); err != nil {
		return ErrMismatch
	}

	p, err := decode(encoded)
	if err != nil {
		return err
	}

	key := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	if subtle.ConstantTimeCompare(key, p.key) != 1 {
		return ErrMismatch
	}
	return nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration. Unparseable hashes always need an upgrade.
func (a *Argon2) NeedsUpgrade(encoded string) bool {
	p, err := decode(encoded)
	if err != nil {
		return true
	}
	return p.memory < a.cfg.Memory ||
		p.time < a.cfg.Time ||
		p.parallelism < a.cfg.Parallelism ||
		uint32(len(p.key)) != a.cfg.KeyLength
}

func (a *Argon2) checkLength(password string) error {
	if len(password) < a.cfg.MinBytes || len(password) > a.cfg.MaxBytes {
		return ErrLength
	}
	return nil
}

type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decode(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrInvalidHash
	}

	var p phc
	n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.parallelism)
	if err != nil || n != 3 || p.memory < minMemoryKB || p.time < 1 || p.parallelism < 1 {
		return nil, ErrInvalidHash
	}

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < minSaltLength {
		return nil, ErrInvalidHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < minKeyLength {
		return nil, ErrInvalidHash
	}

	return &p, nil
}

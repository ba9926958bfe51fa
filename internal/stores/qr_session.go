package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	qrSessionRecordVersionV1 = 1

	// OwnerAnonymous marks a record created by an unauthenticated requester.
	OwnerAnonymous uint8 = 0
	// OwnerPrincipal marks a record created by an authenticated principal.
	OwnerPrincipal uint8 = 1

	maxFieldLen = 65535
	maxRetries  = 4
)

var (
	ErrQRSessionNotFound         = errors.New("qr session not found")
	ErrQRSessionCorrupt          = errors.New("qr session record corrupt")
	ErrQRSessionRedisUnavailable = errors.New("qr session redis unavailable")
	ErrQRResultNotFound          = errors.New("qr result not found")
)

// QRSessionRecord is the pending session written at generation time.
// Expiry is owned by the Redis TTL; the record carries no timestamp.
type QRSessionRecord struct {
	OwnerKind uint8
	OwnerID   string
	Route     string
}

// QRResultRecord is written once a session is accepted so the generating
// client can pick the outcome up.
type QRResultRecord struct {
	Outcome   int             `json:"outcome"`
	OwnerKind uint8           `json:"owner_kind"`
	OwnerID   string          `json:"owner_id,omitempty"`
	SubjectID string          `json:"subject_id,omitempty"`
	Route     string          `json:"route"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type QRSessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewQRSessionStore(redisClient redis.UniversalClient, prefix string) *QRSessionStore {
	if prefix == "" {
		prefix = "qr"
	}
	return &QRSessionStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Keys of one session share a hash tag so Consume stays single-slot on a
// Redis Cluster.
func (s *QRSessionStore) key(sessionKey string) string {
	return s.prefix + ":{" + sessionKey + "}"
}

func (s *QRSessionStore) imageKey(sessionKey string) string {
	return s.prefix + ":img:{" + sessionKey + "}"
}

func (s *QRSessionStore) resultKey(sessionKey string) string {
	return s.prefix + ":res:{" + sessionKey + "}"
}

func (s *QRSessionStore) Save(ctx context.Context, sessionKey string, record *QRSessionRecord, ttl time.Duration) error {
	encoded, err := encodeQRSessionRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionKey), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}

	return nil
}

// SaveIfAbsent writes the record only when no record exists under sessionKey.
// It reports false when the key was already taken.
func (s *QRSessionStore) SaveIfAbsent(ctx context.Context, sessionKey string, record *QRSessionRecord, ttl time.Duration) (bool, error) {
	encoded, err := encodeQRSessionRecord(record)
	if err != nil {
		return false, err
	}

	ok, err := s.redis.SetNX(ctx, s.key(sessionKey), encoded, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}

	return ok, nil
}

// Get reads the record without touching its TTL.
func (s *QRSessionStore) Get(ctx context.Context, sessionKey string) (*QRSessionRecord, error) {
	data, err := s.redis.Get(ctx, s.key(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQRSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}

	return decodeQRSessionRecord(data)
}

func (s *QRSessionStore) Delete(ctx context.Context, sessionKey string) error {
	if err := s.redis.Del(ctx, s.key(sessionKey), s.imageKey(sessionKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}
	return nil
}

// Consume reads the record and deletes it in the same optimistic transaction
// when accept returns true. A concurrent consumer that loses the race sees
// ErrQRSessionNotFound. The returned bool reports whether the record was deleted.
func (s *QRSessionStore) Consume(
	ctx context.Context,
	sessionKey string,
	accept func(*QRSessionRecord) bool,
) (*QRSessionRecord, bool, error) {
	var record *QRSessionRecord

	consumed, err := s.watchAndDelete(ctx, s.key(sessionKey), func(data []byte) (bool, error) {
		decoded, err := decodeQRSessionRecord(data)
		if err != nil {
			return false, err
		}
		record = decoded
		return accept(decoded), nil
	}, s.imageKey(sessionKey))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, ErrQRSessionNotFound
		}
		return nil, false, err
	}

	return record, consumed, nil
}

// Ping measures one round trip to the backing Redis.
func (s *QRSessionStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *QRSessionStore) SaveImage(ctx context.Context, sessionKey string, image []byte, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.imageKey(sessionKey), image, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}
	return nil
}

// GetImage returns the cached image, or false when nothing is cached.
func (s *QRSessionStore) GetImage(ctx context.Context, sessionKey string) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, s.imageKey(sessionKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}
	return data, true, nil
}

func (s *QRSessionStore) SaveResult(ctx context.Context, sessionKey string, result *QRResultRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.resultKey(sessionKey), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
	}
	return nil
}

// TakeResult hands the result out at most once: it is deleted only when
// accept returns true.
func (s *QRSessionStore) TakeResult(
	ctx context.Context,
	sessionKey string,
	accept func(*QRResultRecord) bool,
) (*QRResultRecord, bool, error) {
	var result *QRResultRecord

	taken, err := s.watchAndDelete(ctx, s.resultKey(sessionKey), func(data []byte) (bool, error) {
		var decoded QRResultRecord
		if err := json.Unmarshal(data, &decoded); err != nil {
			return false, fmt.Errorf("%w: %v", ErrQRSessionCorrupt, err)
		}
		result = &decoded
		return accept(&decoded), nil
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, ErrQRResultNotFound
		}
		return nil, false, err
	}

	return result, taken, nil
}

// watchAndDelete runs GET -> inspect -> DEL under WATCH so the delete only
// commits if nobody touched the key in between. Extra keys are deleted
// alongside the watched key.
func (s *QRSessionStore) watchAndDelete(
	ctx context.Context,
	key string,
	inspect func([]byte) (bool, error),
	extra ...string,
) (bool, error) {
	for i := 0; i < maxRetries; i++ {
		deleted := false

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			ok, err := inspect(data)
			if err != nil || !ok {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, append([]string{key}, extra...)...)
				return nil
			})
			if err != nil {
				return err
			}

			deleted = true
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrQRSessionCorrupt):
				return false, err
			default:
				return false, fmt.Errorf("%w: %v", ErrQRSessionRedisUnavailable, err)
			}
		}

		return deleted, nil
	}

	// Every attempt lost to a concurrent writer; the winner consumed the key.
	return false, redis.Nil
}

func encodeQRSessionRecord(record *QRSessionRecord) ([]byte, error) {
	if record == nil {
		return nil, errors.New("qr session record is nil")
	}
	if len(record.OwnerID) > maxFieldLen {
		return nil, errors.New("qr session owner id too long")
	}
	if len(record.Route) > maxFieldLen {
		return nil, errors.New("qr session route too long")
	}

	var buf bytes.Buffer
	buf.Grow(6 + len(record.OwnerID) + len(record.Route))

	buf.WriteByte(qrSessionRecordVersionV1)
	buf.WriteByte(record.OwnerKind)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.OwnerID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.OwnerID)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Route))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Route)

	return buf.Bytes(), nil
}

func decodeQRSessionRecord(data []byte) (*QRSessionRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRSessionCorrupt, err)
	}
	if version != qrSessionRecordVersionV1 {
		return nil, fmt.Errorf("%w: unknown version %d", ErrQRSessionCorrupt, version)
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRSessionCorrupt, err)
	}
	if kind != OwnerAnonymous && kind != OwnerPrincipal {
		return nil, fmt.Errorf("%w: unknown owner kind %d", ErrQRSessionCorrupt, kind)
	}

	ownerID, err := readField(reader)
	if err != nil {
		return nil, err
	}
	route, err := readField(reader)
	if err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: trailing bytes", ErrQRSessionCorrupt)
	}

	return &QRSessionRecord{
		OwnerKind: kind,
		OwnerID:   ownerID,
		Route:     route,
	}, nil
}

func readField(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRSessionCorrupt, err)
	}

	field := make([]byte, n)
	if _, err := io.ReadFull(reader, field); err != nil {
		return "", fmt.Errorf("%w: %v", ErrQRSessionCorrupt, err)
	}
	return string(field), nil
}

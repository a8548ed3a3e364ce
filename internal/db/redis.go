package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/redis/go-redis/v9"

	"github.com/Kerim-Sabic/free-cluely/internal/domain"
	"github.com/Kerim-Sabic/free-cluely/internal/secure"
)

// RedisDataManager stores finished transcripts and session audio in
// Redis, encrypted at rest, with a fixed TTL.
type RedisDataManager struct {
	client  *redis.Client
	ttl     time.Duration
	crypter *secure.Crypter
}

func NewRedisDataManager(connStr string, encryptionKey string) (*RedisDataManager, error) {
	opt, err := redis.ParseURL(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	goapp.Log.Info().Str("redis", opt.Addr).Int("db", opt.DB).Send()
	rdb := redis.NewClient(opt)

	crypter, err := secure.NewCrypter(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("create crypter: %w", err)
	}
	return &RedisDataManager{
		client:  rdb,
		ttl:     time.Hour * 24,
		crypter: crypter,
	}, nil
}

func (r *RedisDataManager) keyTranscript(id string) string {
	return fmt.Sprintf("transcript:%s", id)
}

func (r *RedisDataManager) keyAudio(id string) string {
	return fmt.Sprintf("audio:%s", id)
}

// SaveTranscript stores a finished meeting transcript as encrypted JSON.
func (r *RedisDataManager) SaveTranscript(ctx context.Context, tr *domain.Transcript) error {
	goapp.Log.Trace().Str("id", tr.MeetingID).Msg("Save transcript")
	data, err := json.Marshal(tr)
	if err != nil {
		return err
	}
	encrypted, err := r.crypter.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return r.client.Set(ctx, r.keyTranscript(tr.MeetingID), encrypted, r.ttl).Err()
}

// GetTranscript loads a meeting transcript.
func (r *RedisDataManager) GetTranscript(ctx context.Context, meetingID string) (*domain.Transcript, error) {
	bs, err := r.client.Get(ctx, r.keyTranscript(meetingID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	decrypted, err := r.crypter.Decrypt(bs)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	var tr domain.Transcript
	if err := json.Unmarshal(decrypted, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// SaveAudio converts kept PCM chunks to WAV and stores them encrypted.
func (r *RedisDataManager) SaveAudio(ctx context.Context, id string, chunks [][]byte) error {
	goapp.Log.Trace().Str("id", id).Msg("Save audio")
	data, err := toWav(chunks)
	if err != nil {
		return fmt.Errorf("convert to wav: %w", err)
	}
	encrypted, err := r.crypter.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	return r.client.Set(ctx, r.keyAudio(id), encrypted, r.ttl).Err()
}

// GetAudio retrieves stored WAV bytes.
func (r *RedisDataManager) GetAudio(ctx context.Context, id string) ([]byte, error) {
	bs, err := r.client.Get(ctx, r.keyAudio(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("not found")
		}
		return nil, err
	}
	decrypted, err := r.crypter.Decrypt(bs)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return decrypted, nil
}

func (r *RedisDataManager) Close() error {
	return r.client.Close()
}

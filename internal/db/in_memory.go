package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/Kerim-Sabic/free-cluely/internal/domain"
)

// MemoryDataManager is the in-process mirror of the Redis manager, used
// for development and tests.
type MemoryDataManager struct {
	transcripts map[string]*domain.Transcript
	audio       map[string][]byte

	lock sync.RWMutex
}

func NewMemoryDataManager() *MemoryDataManager {
	return &MemoryDataManager{
		transcripts: make(map[string]*domain.Transcript),
		audio:       make(map[string][]byte),
	}
}

func (am *MemoryDataManager) SaveTranscript(ctx context.Context, tr *domain.Transcript) error {
	goapp.Log.Debug().Str("id", tr.MeetingID).Msg("Save transcript")
	am.lock.Lock()
	defer am.lock.Unlock()
	cp := *tr
	am.transcripts[tr.MeetingID] = &cp
	return nil
}

func (am *MemoryDataManager) GetTranscript(ctx context.Context, meetingID string) (*domain.Transcript, error) {
	am.lock.RLock()
	defer am.lock.RUnlock()
	tr, ok := am.transcripts[meetingID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *tr
	return &cp, nil
}

func (am *MemoryDataManager) SaveAudio(ctx context.Context, id string, chunks [][]byte) error {
	goapp.Log.Debug().Str("id", id).Msg("Save audio")
	am.lock.Lock()
	defer am.lock.Unlock()
	res, err := toWav(chunks)
	if err != nil {
		return fmt.Errorf("to wav: %w", err)
	}
	am.audio[id] = res
	return nil
}

func (am *MemoryDataManager) GetAudio(ctx context.Context, id string) ([]byte, error) {
	am.lock.RLock()
	defer am.lock.RUnlock()
	data, ok := am.audio[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

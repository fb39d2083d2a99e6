// Package editor 管理游客草稿的存取与编辑会话。
// 草稿不落库，只存在于 redis 中，登录后可一键转存为正式简历。
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cvbuilder/internal/document"
)

// DraftTTL 为游客草稿的滑动过期时间：每次读写都会续期。
const DraftTTL = 24 * time.Hour

// ErrDraftNotFound 表示草稿不存在或已过期。
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore 抽象草稿的持久化，便于测试替换实现。
type DraftStore interface {
	Load(ctx context.Context, id string) (*document.Document, error)
	Save(ctx context.Context, id string, doc *document.Document) error
	Delete(ctx context.Context, id string) error
}

// RedisDraftStore 将草稿整体序列化后写入 redis。
type RedisDraftStore struct {
	client *redis.Client
}

// NewRedisDraftStore 构造基于 redis 的草稿存储。
func NewRedisDraftStore(client *redis.Client) *RedisDraftStore {
	return &RedisDraftStore{client: client}
}

func draftKey(id string) string {
	return "guest:draft:" + id
}

// Load 读取并反序列化草稿，同时续期 TTL。
func (s *RedisDraftStore) Load(ctx context.Context, id string) (*document.Document, error) {
	data, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	doc, err := document.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}

	// 读也续期，活跃的游客不会丢草稿。
	s.client.Expire(ctx, draftKey(id), DraftTTL)
	return doc, nil
}

// Save 序列化草稿并写入 redis，重置 TTL。
func (s *RedisDraftStore) Save(ctx context.Context, id string, doc *document.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(id), data, DraftTTL).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Delete 删除草稿；草稿不存在时不视为错误。
func (s *RedisDraftStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// MemoryDraftStore 为进程内实现，仅用于测试。
type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

// NewMemoryDraftStore 构造空的内存草稿存储。
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string][]byte)}
}

func (s *MemoryDraftStore) Load(ctx context.Context, id string) (*document.Document, error) {
	s.mu.RLock()
	data, ok := s.drafts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDraftNotFound
	}
	return document.Unmarshal(data)
}

func (s *MemoryDraftStore) Save(ctx context.Context, id string, doc *document.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.drafts[id] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryDraftStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.drafts, id)
	s.mu.Unlock()
	return nil
}

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cvbuilder/internal/document"
)

// 编辑操作类型。与前端编辑器发出的操作一一对应。
const (
	OpAddItem     = "add_item"
	OpRemoveItem  = "remove_item"
	OpSetField    = "set_field"
	OpMoveItem    = "move_item"
	OpMoveSection = "move_section"
	OpSetInfo     = "set_info"
	OpSetSettings = "set_settings"
	OpRename      = "rename"
)

// ErrConfirmRequired 表示删除条目需要显式确认。
var ErrConfirmRequired = errors.New("confirm required")

// ErrUnknownOp 表示不认识的操作类型。
var ErrUnknownOp = errors.New("unknown op")

// Op 表示一次编辑操作。不同操作类型只使用其中一部分字段。
type Op struct {
	Type       string          `json:"type" binding:"required"`
	Section    string          `json:"section,omitempty"`
	Index      int             `json:"index,omitempty"`
	From       int             `json:"from,omitempty"`
	To         int             `json:"to,omitempty"`
	FromColumn string          `json:"fromColumn,omitempty"`
	ToColumn   string          `json:"toColumn,omitempty"`
	Field      string          `json:"field,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Confirm    bool            `json:"confirm,omitempty"`
	Name       string          `json:"name,omitempty"`
}

func (op Op) stringValue() (string, error) {
	if len(op.Value) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(op.Value, &s); err != nil {
		return "", fmt.Errorf("op value must be a string: %w", err)
	}
	return s, nil
}

// Session 将一个草稿 id 与其文档绑定，负责应用操作并同步写回存储。
type Session struct {
	id    string
	doc   *document.Document
	store DraftStore
}

// OpenSession 从存储加载草稿；不存在时创建一份空文档并立即落库。
func OpenSession(ctx context.Context, store DraftStore, id string) (*Session, error) {
	doc, err := store.Load(ctx, id)
	if errors.Is(err, ErrDraftNotFound) {
		doc = document.New("")
		if err := store.Save(ctx, id, doc); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &Session{id: id, doc: doc, store: store}, nil
}

// Document 返回会话当前的文档。
func (s *Session) Document() *document.Document {
	return s.doc
}

// Replace 用整份文档覆盖草稿并写回。
func (s *Session) Replace(ctx context.Context, doc *document.Document) error {
	doc.Normalize()
	s.doc = doc
	return s.store.Save(ctx, s.id, s.doc)
}

// Apply 应用单个操作。操作成功后同步写回存储；失败则文档保持不变。
func (s *Session) Apply(ctx context.Context, op Op) error {
	if err := s.apply(op); err != nil {
		return err
	}
	return s.store.Save(ctx, s.id, s.doc)
}

func (s *Session) apply(op Op) error {
	switch op.Type {
	case OpAddItem:
		_, err := s.doc.AddItem(op.Section)
		return err
	case OpRemoveItem:
		if !op.Confirm {
			return ErrConfirmRequired
		}
		return s.doc.RemoveItem(op.Section, op.Index)
	case OpSetField:
		value, err := op.stringValue()
		if err != nil {
			return err
		}
		return s.doc.SetField(op.Section, op.Index, op.Field, value)
	case OpMoveItem:
		return s.doc.MoveItem(op.Section, op.From, op.To)
	case OpMoveSection:
		return s.doc.MoveSection(op.FromColumn, op.From, op.ToColumn, op.To)
	case OpSetInfo:
		value, err := op.stringValue()
		if err != nil {
			return err
		}
		return s.doc.SetInfo(op.Field, value)
	case OpSetSettings:
		var patch document.Settings
		if len(op.Value) > 0 {
			if err := json.Unmarshal(op.Value, &patch); err != nil {
				return fmt.Errorf("op value must be a settings object: %w", err)
			}
		}
		s.doc.MergeSettings(patch)
		return nil
	case OpRename:
		name := op.Name
		if name == "" {
			name = document.DefaultName
		}
		s.doc.Name = name
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, op.Type)
	}
}

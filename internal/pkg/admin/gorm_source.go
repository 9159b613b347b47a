package admin

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/ClipPass/app/repository"
)

// GormSource reads bound tables straight from the database.
type GormSource struct {
	db *gorm.DB
}

func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db}
}

func (s *GormSource) Count(ctx context.Context, b Binding) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(b.Table).Count(&n).Error
	return n, err
}

func (s *GormSource) List(ctx context.Context, b Binding, offset, limit int) ([][]string, error) {
	var records []map[string]any
	err := s.db.WithContext(ctx).Table(b.Table).
		Select(b.Columns).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.Table, err)
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(b.Columns))
		for i, col := range b.Columns {
			row[i] = formatCell(rec[col])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Delete removes one row. Foreign keys cascade the rest.
func (s *GormSource) Delete(ctx context.Context, b Binding, id uint) error {
	res := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: b.Table}, id)
	if res.Error != nil {
		return fmt.Errorf("delete %s %d: %w", b.Table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.DateTime)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.UTC().Format(time.DateTime)
	default:
		return fmt.Sprint(val)
	}
}

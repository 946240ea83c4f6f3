package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ehcaw/lsclear-backend/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init opens the sqlite database, enables WAL, and migrates the schema.
func Init() error {
	dbPath := config.Cfg.DatabasePath
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if err := DB.AutoMigrate(&User{}, &FSNode{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	return nil
}

func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// User helpers

func GetUserByID(id string) (*User, error) {
	var u User
	if err := DB.First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func CreateUser(user *User) error {
	return DB.Create(user).Error
}

// File tree helpers

// GetFileTreeForUser returns the user's file system as a nested tree.
// All nodes are fetched in one query ordered directories-first then by
// name, then assembled in two passes: create every node, then hang each
// node off its parent (or the root when parent_id is null).
func GetFileTreeForUser(userID string) ([]*FileTreeNode, error) {
	var rows []FSNode
	if err := DB.Where("user_id = ?", userID).
		Order("is_dir DESC, name").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query fs_nodes: %w", err)
	}

	nodesByID := make(map[uint]*FileTreeNode, len(rows))
	roots := []*FileTreeNode{}

	for _, row := range rows {
		nodesByID[row.ID] = &FileTreeNode{
			ID:        row.ID,
			ParentID:  row.ParentID,
			Name:      row.Name,
			IsDir:     row.IsDir,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
			Children:  []*FileTreeNode{},
		}
	}

	for _, row := range rows {
		node := nodesByID[row.ID]
		if row.ParentID != nil {
			if parent, ok := nodesByID[*row.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		if row.ParentID == nil {
			roots = append(roots, node)
		}
	}

	return roots, nil
}

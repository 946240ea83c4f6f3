package database

import "time"

// User mirrors the identity records provisioned by the auth layer. The
// backend only reads them: startSession resolves the user, deleteSession
// authorizes against it.
type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null" json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FSNode is one row of a user's virtual file system: a file or directory
// in the editor's tree. Content is null for directories.
type FSNode struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"index;not null" json:"-"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Name      string    `gorm:"not null" json:"name"`
	IsDir     bool      `gorm:"not null;default:false" json:"is_dir"`
	Content   *string   `json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName keeps the original schema's table name.
func (FSNode) TableName() string {
	return "fs_nodes"
}

// FileTreeNode is the nested JSON shape returned by the file-tree
// snapshot endpoint.
type FileTreeNode struct {
	ID        uint            `json:"id"`
	ParentID  *uint           `json:"parent_id"`
	Name      string          `json:"name"`
	IsDir     bool            `json:"is_dir"`
	Content   *string         `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Children  []*FileTreeNode `json:"children"`
}

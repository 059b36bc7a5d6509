package common

import (
	"github.com/google/uuid"
)

// GenerateUUID 生成重建作業識別碼
func GenerateUUID() string {
	return uuid.New().String()
}

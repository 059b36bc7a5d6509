package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// 用 observer 核心攔截日誌，驗證快取紀錄帶出類型與鍵
func TestCacheLogsIncludeKey(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := Logger
	Logger = zap.New(core)
	defer func() { Logger = prev }()

	LogCacheHit("memory", "rec:hybrid:U1")
	LogCacheMiss("memory", "rec:hybrid:U2")

	entries := logs.All()
	require.Len(t, entries, 2)

	hit := entries[0].ContextMap()
	assert.Equal(t, "快取命中", entries[0].Message)
	assert.Equal(t, "memory", hit["類型"])
	assert.Equal(t, "rec:hybrid:U1", hit["鍵"])

	miss := entries[1].ContextMap()
	assert.Equal(t, "快取未命中", entries[1].Message)
	assert.Equal(t, "rec:hybrid:U2", miss["鍵"])
}

package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// APIVersion 当前接口版本
const APIVersion = "v1"

// DeprecatedVersionInfo 废弃版本信息
type DeprecatedVersionInfo struct {
	Version       string
	SunsetDate    time.Time
	MigrationPath string
}

var (
	deprecatedVersions = make(map[string]DeprecatedVersionInfo)
	deprecatedMu       sync.RWMutex
)

// VersionMiddleware 从 /api/vN 路径识别版本,写入 X-API-Version 响应头
// 已登记废弃的版本额外返回 Deprecation 与 Sunset 头
func VersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		version := versionFromPath(c.Request.URL.Path)
		if version == "" {
			c.Next()
			return
		}

		deprecatedMu.RLock()
		info, deprecated := deprecatedVersions[version]
		deprecatedMu.RUnlock()

		if deprecated {
			c.Header("Deprecation", "true")
			c.Header("Sunset", info.SunsetDate.UTC().Format(time.RFC1123))
			if info.MigrationPath != "" {
				c.Header("Link", "<"+info.MigrationPath+">; rel=\"successor-version\"")
			}
		}

		c.Header("X-API-Version", version)
		c.Set("api_version", version)
		c.Next()
	}
}

func versionFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	if len(seg) < 2 || seg[0] != 'v' {
		return ""
	}
	return seg
}

// RegisterDeprecatedVersion 登记废弃版本
func RegisterDeprecatedVersion(info DeprecatedVersionInfo) {
	deprecatedMu.Lock()
	defer deprecatedMu.Unlock()
	deprecatedVersions[info.Version] = info
}

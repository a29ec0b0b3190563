package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// RequireRank 要求当前账号职级不低于 min,用于主数据维护等管理接口
func RequireRank(accounts repository.AccountRepository, min types.Rank) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			unauthorized(c, "unauthorized", "")
			return
		}

		acc, err := accounts.FindByID(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "permission check failed",
			})
			return
		}

		if acc == nil || !types.ParseRank(acc.Role).AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    http.StatusForbidden,
				"message": "not permitted",
			})
			return
		}

		c.Next()
	}
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// pathID 读取并校验路径中的 ID
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if err := utils.ValidateID(id); err != nil {
		fail(c, WrapError(err, http.StatusBadRequest, "invalid "+name))
		return "", false
	}
	return id, true
}

// queryInt 读取整数查询参数,缺省时返回 def
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		fail(c, &APIError{Code: http.StatusBadRequest, Message: "invalid " + name, Detail: "must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

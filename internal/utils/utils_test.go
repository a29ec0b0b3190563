package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// TestValidateID 测试路径 ID 校验
func TestValidateID(t *testing.T) {
	assert.NoError(t, utils.ValidateID("task-001"))
	assert.NoError(t, utils.ValidateID("E1001_a"))
	assert.Equal(t, utils.ErrEmptyID, utils.ValidateID(""))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateID("a b"))
	assert.Equal(t, utils.ErrInvalidIDFormat, utils.ValidateID("x';--"))

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	assert.Equal(t, utils.ErrIDTooLong, utils.ValidateID(string(long)))
}

// TestValidateName 测试名称校验
func TestValidateName(t *testing.T) {
	assert.NoError(t, utils.ValidateName("FTTH drive - Ward 12"))
	assert.Equal(t, utils.ErrEmptyName, utils.ValidateName("   "))
	assert.Equal(t, utils.ErrDangerousChars, utils.ValidateName("<script>alert(1)</script>"))
}

// TestTrimAndValidate 测试文本清理
func TestTrimAndValidate(t *testing.T) {
	out, err := utils.TrimAndValidate("  short <b>  ", 0)
	require.NoError(t, err)
	assert.Equal(t, "short <b>", out)

	out, err = utils.TrimAndValidate("a & b\x00\n", 0)
	require.NoError(t, err)
	assert.Equal(t, "a & b", out)

	// 长度按字符计算
	out, err = utils.TrimAndValidate("नमस्ते & ok", 11)
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते & ok", out)

	_, err = utils.TrimAndValidate("   ", 10)
	assert.Equal(t, utils.ErrEmptyString, err)

	_, err = utils.TrimAndValidate("0123456789ab", 10)
	assert.Equal(t, utils.ErrStringTooLong, err)
}

// TestValidateSort 测试排序白名单
func TestValidateSort(t *testing.T) {
	assert.NoError(t, utils.ValidateSortField("created_at", "created_at", "name"))
	assert.Equal(t, utils.ErrSortField, utils.ValidateSortField("created_at; DROP TABLE tasks", "created_at"))
	assert.NoError(t, utils.ValidateSortOrder("asc"))
	assert.Equal(t, utils.ErrSortOrder, utils.ValidateSortOrder("sideways"))
	assert.Equal(t, "DESC", utils.SanitizeSortOrder("bogus"))
	assert.Equal(t, "ASC", utils.SanitizeSortOrder(" asc "))
}

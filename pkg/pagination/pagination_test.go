package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return ParseParams(c)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, DefaultOffset},
		{"explicit values", "limit=10&offset=40", 10, 40},
		{"zero limit falls back", "limit=0", DefaultLimit, DefaultOffset},
		{"negative values fall back", "limit=-5&offset=-1", DefaultLimit, DefaultOffset},
		{"limit capped at max", "limit=500", MaxLimit, DefaultOffset},
		{"garbage ignored", "limit=abc&offset=xyz", DefaultLimit, DefaultOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := paramsFor(t, tt.query)
			assert.Equal(t, tt.wantLimit, params.Limit)
			assert.Equal(t, tt.wantOffset, params.Offset)
		})
	}
}

func TestBuildMeta(t *testing.T) {
	meta := BuildMeta(20, 40, 100)
	assert.Equal(t, 20, meta.Limit)
	assert.Equal(t, 40, meta.Offset)
	assert.Equal(t, int64(100), meta.Total)
	assert.Equal(t, 5, meta.TotalPages)
	assert.True(t, meta.HasMore)

	partial := BuildMeta(10, 0, 25)
	assert.Equal(t, 3, partial.TotalPages)

	last := BuildMeta(10, 90, 100)
	assert.False(t, last.HasMore)
}

package backgroundworkers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yuzubot/yuzu/common"
)

type sickPlugin struct{ err error }

func (p *sickPlugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{Name: "Sick", SysName: "sick"}
}

func (p *sickPlugin) Healthy() error { return p.err }

func TestHealth(t *testing.T) {
	orig := common.Plugins
	defer func() { common.Plugins = orig }()

	p := &sickPlugin{}
	common.Plugins = []common.Plugin{p}
	mux := NewMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	p.err = errors.New("store closed")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "sick: store closed")
}

func TestMetrics(t *testing.T) {
	mux := NewMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

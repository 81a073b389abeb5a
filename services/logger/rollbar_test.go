package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/pkl/core"
	"github.com/trezcool/pkl/core/user"
)

func TestRollbarLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	usr := user.User{ID: "u1", Username: "andi01", Email: "andi@school.id"}
	logger.Error("sweep failed", errors.New("boom"), usr)
	logger.Info("sweep done", &usr)

	out := buf.String()
	assert.Contains(t, out, "ERROR sweep failed\n")
	assert.Contains(t, out, "boom\n")
	assert.Contains(t, out, "INFO  sweep done\n")
	assert.NotContains(t, out, "andi01")
}

func TestPrepareDropsUsers(t *testing.T) {
	logger := RollbarLogger{}
	usr := user.User{ID: "u1"}
	extra := map[string]interface{}{"date": "2024-03-04"}

	args := logger.prepare("msg", []interface{}{usr, extra, &usr})
	assert.Equal(t, []interface{}{"msg", extra}, args)
}

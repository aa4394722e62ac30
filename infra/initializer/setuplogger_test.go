package initializer

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Log{Format: "json", Prefix: "[test]", TimeFormat: "15:04:05"})

	logger.Info("Order commission paid", "order_id", "o-1", "levels", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Order commission paid", line["msg"])
	assert.Equal(t, "o-1", line["order_id"])
	assert.EqualValues(t, 3, line["levels"])
}

func TestNewLogger_NilConfig(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil).Warn("hello")
	assert.Contains(t, buf.String(), "hello")
}

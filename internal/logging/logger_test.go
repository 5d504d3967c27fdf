package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	Component(logger, "import_service").WithField("imported", 3).Info("orders imported")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "orders imported", entry["msg"])
	assert.Equal(t, "import_service", entry["component"])
	assert.Equal(t, float64(3), entry["imported"])
}

func TestNewLogger_DevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "development", "nonsense")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

package initializer

import (
	"testing"

	infraeventbus "github.com/amirasaad/mlmcore/infra/eventbus"
	"github.com/amirasaad/mlmcore/pkg/config"
	"github.com/amirasaad/mlmcore/pkg/testutils"
	"github.com/stretchr/testify/require"
)

func TestInitEventBus_DefaultsToMemoryAsyncWhenNoExplicitDriver(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: ""}}

	bus, err := initEventBus(cfg, testutils.DiscardLogger())
	require.NoError(t, err)
	require.IsType(t, &infraeventbus.MemoryAsyncEventBus{}, bus)
}

func TestInitEventBus_Memory(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "memory"}}

	bus, err := initEventBus(cfg, testutils.DiscardLogger())
	require.NoError(t, err)
	require.IsType(t, &infraeventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_ExplicitKafkaRequiresBrokers(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "kafka", Brokers: ""}}

	_, err := initEventBus(cfg, testutils.DiscardLogger())
	require.Error(t, err)
}

func TestInitEventBus_KafkaConnectionErrorFallsBackToMemoryAsync(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "kafka", Brokers: "127.0.0.1:1"}}

	bus, err := initEventBus(cfg, testutils.DiscardLogger())
	require.NoError(t, err)
	require.IsType(t, &infraeventbus.MemoryAsyncEventBus{}, bus)
}

func TestInitEventBus_UnsupportedDriverErrors(t *testing.T) {
	cfg := &config.App{EventBus: &config.EventBus{Driver: "nope"}}

	_, err := initEventBus(cfg, testutils.DiscardLogger())
	require.Error(t, err)
}

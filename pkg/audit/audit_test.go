package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilProducer_PublishIsNoop(t *testing.T) {
	var p *Producer
	err := p.Publish(Event{Type: RegexRejected, StreamID: "s1", OccurredAt: time.Now()})
	require.NoError(t, err)
}

func TestNilProducer_CloseAndErrorsAreNoop(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.Close())
	assert.Nil(t, p.Errors())
}

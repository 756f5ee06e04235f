package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/internal/domain/entity"
)

type captureConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *captureConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNATSPublisher_Publish(t *testing.T) {
	c := &captureConn{}
	p := newPublisher(c, "gen.progress.", nil)

	p.Publish(context.Background(), entity.Progress{RunID: "r1", Percent: 40, State: entity.StateComposing})

	require.Len(t, c.subjects, 1)
	assert.Equal(t, "gen.progress.r1", c.subjects[0])

	var got entity.Progress
	require.NoError(t, json.Unmarshal(c.payloads[0], &got))
	assert.Equal(t, 40, got.Percent)
	assert.Equal(t, entity.StateComposing, got.State)
}

func TestNATSPublisher_DefaultPrefixAndErrors(t *testing.T) {
	c := &captureConn{err: errors.New("nats: connection closed")}
	p := newPublisher(c, "", nil)
	assert.Equal(t, DefaultSubjectPrefix+".r2", p.Subject("r2"))

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), entity.Progress{RunID: "r2"})
	})
	p.Close()
}

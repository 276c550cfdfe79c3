package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/penwyp/mini-classroom/internal/core/classroom"
	"github.com/penwyp/mini-classroom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink 记住发布的每条审计记录
type captureSink struct {
	records []*protocol.EventRecord
}

func (c *captureSink) Publish(_ context.Context, rec *protocol.EventRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) Close() error { return nil }

var zstdFrameMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func TestDeliverPlainAuditsEncodedEvent(t *testing.T) {
	r := NewRegistry()
	s := newSession(1, "c1", "s1", classroom.RoleStudent)
	r.Register(s)
	sink := &captureSink{}
	f := NewFanout(r, sink, false)

	f.Deliver(context.Background(), "c1", "s1", SelectAll(),
		protocol.NewResponse(protocol.ActionCodeChange, map[string]string{"code": "x = 1"}))

	payloads := recv(s)
	require.Len(t, payloads, 1)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "c1", rec.ClassroomID)
	assert.Equal(t, "s1", rec.UserID)
	assert.Equal(t, protocol.ActionCodeChange, rec.Action)
	assert.Equal(t, payloads[0], []byte(rec.Payload))
	assert.NotZero(t, rec.Timestamp)
}

func TestDeliverCompressedKeepsAuditPlain(t *testing.T) {
	r := NewRegistry()
	s := newSession(1, "c1", "s1", classroom.RoleStudent)
	r.Register(s)
	sink := &captureSink{}
	f := NewFanout(r, sink, true)

	f.Deliver(context.Background(), "c1", "s1", SelectAll(),
		protocol.NewResponse(protocol.ActionCodeChange, map[string]string{
			"code": strings.Repeat("print(\"hello\")\n", 32),
		}))

	payloads := recv(s)
	require.Len(t, payloads, 1)
	assert.True(t, bytes.HasPrefix(payloads[0], zstdFrameMagic),
		"delivered payload must carry the zstd frame header")

	resp, err := protocol.DecodeResponse(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.ActionCodeChange, resp.Action)

	// 审计流存明文，归档 worker 不需要解压
	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.True(t, json.Valid(rec.Payload), "audit payload must stay uncompressed")
	assert.NotEqual(t, payloads[0], []byte(rec.Payload))
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	raw := []byte(`{"action": 2, "user_id": "s1", "data": {"code": "x = 1", "whiteboardType": "0"}}`)

	req, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionCodeChange, req.Action)
	assert.Equal(t, "s1", req.UserID)
	assert.Equal(t, "x = 1", req.Field("code"))
	assert.Equal(t, "", req.Field("missing"))
}

func TestDecodeRequestMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"not json", []byte("not-json")},
		{"invalid action", []byte(`{"action": 99, "user_id": "s1"}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := NewResponse(ActionJoin, map[string]string{"userId": "s1"})

	raw, err := resp.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, ActionJoin, decoded.Action)
}

func TestResponseCompressedRoundTrip(t *testing.T) {
	resp := NewResponse(ActionSyncData, map[string]string{
		"code": "print(\"Hello world!\")",
	})

	compressed, err := resp.Encode(true)
	require.NoError(t, err)
	assert.True(t, len(compressed) >= 4, "compressed payload carries the zstd frame header")

	decoded, err := DecodeResponse(compressed)
	require.NoError(t, err)
	assert.Equal(t, ActionSyncData, decoded.Action)

	plain, err := resp.Encode(false)
	require.NoError(t, err)
	assert.NotEqual(t, plain, compressed)
}

func TestDecodeRequestCompressed(t *testing.T) {
	// 入站也允许 zstd 压缩载荷
	raw := []byte(`{"action": 1, "user_id": "s1"}`)
	compressed := zstdEncoder.EncodeAll(raw, nil)

	req, err := DecodeRequest(compressed)
	require.NoError(t, err)
	assert.Equal(t, ActionJoin, req.Action)
	assert.Equal(t, "s1", req.UserID)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("permission_denied", "action requires teacher role")

	assert.Equal(t, ActionNone, resp.Action)
	raw, err := resp.Encode(false)
	require.NoError(t, err)

	decoded, err := DecodeResponse(raw)
	require.NoError(t, err)
	data, ok := decoded.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "permission_denied", data["kind"])
}

func TestEventRecordRoundTrip(t *testing.T) {
	rec := &EventRecord{
		ClassroomID: "c1",
		UserID:      "s1",
		Action:      ActionCodeChange,
		Payload:     []byte(`{"code":"x = 1"}`),
		Timestamp:   1700000000000,
	}

	data, err := EncodeEventRecord(rec)
	require.NoError(t, err)

	decoded, err := DecodeEventRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec.ClassroomID, decoded.ClassroomID)
	assert.Equal(t, rec.Action, decoded.Action)
	assert.JSONEq(t, string(rec.Payload), string(decoded.Payload))
}

func TestActionValid(t *testing.T) {
	assert.True(t, ActionNone.Valid())
	assert.True(t, ActionGradeAssignment.Valid())
	assert.False(t, Action(13).Valid())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "teacher_join", ActionTeacherJoin.String())
	assert.Equal(t, "unknown", Action(42).String())
}

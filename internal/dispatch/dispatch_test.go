package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgelinegames/corehost/internal/wire"
)

type recordingHandler struct {
	gotSession string
	gotType    string
	handled    bool
}

func (h *recordingHandler) Handle(sessionID string, env wire.Envelope) bool {
	h.gotSession = sessionID
	h.gotType = env.Type
	return h.handled
}

type recordingReplier struct {
	sentTo string
	sent   any
}

func (r *recordingReplier) Send(sessionID string, v any) {
	r.sentTo = sessionID
	r.sent = v
}

func TestRouteStripsPrefix(t *testing.T) {
	replier := &recordingReplier{}
	d := New(replier)
	board := &recordingHandler{handled: true}
	warfront := &recordingHandler{handled: true}
	d.Register("mc_", board)
	d.Register("wf_", warfront)

	d.Route("s1", wire.Envelope{Type: "mc_move"})
	assert.Equal(t, "s1", board.gotSession)
	assert.Equal(t, "move", board.gotType)

	d.Route("s2", wire.Envelope{Type: "wf_role_action"})
	assert.Equal(t, "role_action", warfront.gotType)
	assert.Nil(t, replier.sent)
}

func TestRouteUnprefixedFallsThrough(t *testing.T) {
	d := New(&recordingReplier{})
	rhythm := &recordingHandler{handled: true}
	d.RegisterDefault(rhythm)

	d.Route("s1", wire.Envelope{Type: "queue_ranked"})
	assert.Equal(t, "queue_ranked", rhythm.gotType)
}

func TestRouteUnknownTagReturnsError(t *testing.T) {
	replier := &recordingReplier{}
	d := New(replier)
	d.Register("mc_", &recordingHandler{handled: true})

	d.Route("s1", wire.Envelope{Type: "zz_nothing"})
	require.NotNil(t, replier.sent)
	errFrame, ok := replier.sent.(*wire.Error)
	require.True(t, ok)
	assert.Equal(t, wire.CodeUnknownType, errFrame.Code)
	assert.Equal(t, "s1", replier.sentTo)
}

func TestRouteUnconsumedMessageReturnsError(t *testing.T) {
	replier := &recordingReplier{}
	d := New(replier)
	d.Register("mc_", &recordingHandler{handled: false})

	d.Route("s1", wire.Envelope{Type: "mc_bogus"})
	require.NotNil(t, replier.sent)
	errFrame := replier.sent.(*wire.Error)
	assert.Equal(t, wire.CodeUnknownType, errFrame.Code)
}

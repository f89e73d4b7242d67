package handlers

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/inspection-audit/internal/audit"
)

func TestOfferLatestKeepsNewestState(t *testing.T) {
	ch := make(chan audit.FetchState, 1)
	offerLatest(ch, audit.FetchState{LastEntityID: "a", Loading: true})
	offerLatest(ch, audit.FetchState{LastEntityID: "a"})

	got := <-ch
	assert.False(t, got.Loading)
	assert.Empty(t, ch)
}

func TestWriteEventFormatsServerSentEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, writeEvent(w, "state", map[string]bool{"loading": true}))
	assert.Equal(t, "event: state\ndata: {\"loading\":true}\n\n", buf.String())
}

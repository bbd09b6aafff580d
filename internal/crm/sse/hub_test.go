package sse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastDeliversToRegisteredClients(t *testing.T) {
	h := NewHub()
	a := &Client{ID: "a", Events: make(chan Event, 1)}
	b := &Client{ID: "b", Events: make(chan Event, 1)}
	h.Register(a)
	h.Register(b)
	assert.Equal(t, 2, h.ClientCount())

	h.PublishPOUpdate(42, "updated")

	for _, c := range []*Client{a, b} {
		ev := <-c.Events
		assert.Equal(t, EventPOUpdate, ev.EventType)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
		assert.EqualValues(t, 42, payload["purchase_order_id"])
		assert.Equal(t, "updated", payload["action"])
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	h := NewHub()
	c := &Client{ID: "slow", Events: make(chan Event, 1)}
	h.Register(c)

	h.PublishImageUpdate(7, "PURCHASE_ORDERS", 1, "created")
	h.PublishImageUpdate(7, "PURCHASE_ORDERS", 2, "created")

	assert.Len(t, c.Events, 1)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	h := NewHub()
	c := &Client{ID: "x", Events: make(chan Event, 1)}
	h.Register(c)
	h.Unregister("x")

	_, open := <-c.Events
	assert.False(t, open)
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_NilIsNoop(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() {
		h.PublishPOUpdate(1, "deleted")
	})
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_BroadcastRespectsSubscribedTypes(t *testing.T) {
	h := NewHub()
	images := &Client{ID: "img", Types: map[string]bool{EventImageUpdate: true}, Events: make(chan Event, 4)}
	all := &Client{ID: "all", Events: make(chan Event, 4)}
	h.Register(images)
	h.Register(all)

	h.PublishPOUpdate(1, "updated")
	h.PublishImageUpdate(101, "PURCHASE_ORDERS", 3, "created")

	require.Len(t, images.Events, 1)
	assert.Equal(t, EventImageUpdate, (<-images.Events).EventType)
	assert.Len(t, all.Events, 2)
}

func TestParseEventTypes(t *testing.T) {
	types, err := ParseEventTypes("")
	require.NoError(t, err)
	assert.Empty(t, types)

	types, err = ParseEventTypes(" image_update , po_update,")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{EventImageUpdate: true, EventPOUpdate: true}, types)

	_, err = ParseEventTypes("po_update,task_update")
	assert.ErrorContains(t, err, "task_update")
}

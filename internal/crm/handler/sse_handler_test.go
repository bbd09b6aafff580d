package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/crm/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseRouter(hub *sse.Hub) *gin.Engine {
	router := testutil.SetupRouter()
	testutil.AuthGroup(router, "/api/v1").GET("/events", NewSSEHandler(hub).Stream)
	return router
}

func TestSSEStream_FiltersByType(t *testing.T) {
	hub := sse.NewHub()
	router := sseRouter(hub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?types=image_update&token="+testutil.DefaultTestToken(), nil)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishPOUpdate(1, "updated")
	hub.PublishImageUpdate(101, "PURCHASE_ORDERS", 3, "created")
	// 关闭后缓冲内事件仍会写出
	hub.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after hub close")
	}

	body := w.Body.String()
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, `"types":["image_update"]`)
	assert.Contains(t, body, "event: image_update")
	assert.Contains(t, body, `"fk_item_id":101`)
	assert.NotContains(t, body, "po_update")
}

func TestSSEStream_UnknownType(t *testing.T) {
	router := sseRouter(sse.NewHub())

	w := testutil.DoRequest(router, http.MethodGet, "/api/v1/events?types=task_update", nil, testutil.DefaultTestToken())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(40000), testutil.ParseResponse(w)["code"])
}

func TestSSEStream_NoHub(t *testing.T) {
	router := sseRouter(nil)

	w := testutil.DoRequest(router, http.MethodGet, "/api/v1/events", nil, testutil.DefaultTestToken())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

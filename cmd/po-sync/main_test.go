package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/reconcile"
	"github.com/bitfantasy/nimo-crm/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGallery(t *testing.T) {
	items := []workflow.LineItem{
		{
			ID:           101,
			ItemName:     "Mug",
			ImagesLoaded: true,
			Images: []reconcile.Image{
				{ID: 1, Filename: "mug-front.png", Type: "ARTWORK", Source: reconcile.SourceRemote},
			},
			Pending: []workflow.LocalImage{{Filename: "mug-back.png", Type: "OTHER"}},
		},
		{ID: 0, ItemName: "Draft"},
	}

	var buf bytes.Buffer
	renderGallery(&buf, items)
	out := buf.String()

	assert.Contains(t, out, "mug-front.png")
	assert.Contains(t, out, "mug-back.png")
	assert.Contains(t, out, "remote")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "new")
	assert.Contains(t, out, "pending")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	renderStats(&buf, reconcile.Stats{Fetches: 7, Loaded: 2, GaveUp: 1})
	assert.Contains(t, buf.String(), "Fetches")
	assert.Contains(t, buf.String(), "7")
}

func TestRootCmdRequiresPurchaseOrder(t *testing.T) {
	cfg := &config.Config{Client: config.ClientConfig{BaseURL: "http://127.0.0.1:1"}}
	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"gallery"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "po")
}

// fakeAPI 采购订单5带行项101，行项101有图片3
func fakeAPI(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, status int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "message": "success", "data": data})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/purchase-orders-items/purchase-order/5":
			reply(w, 200, map[string]interface{}{"items": []map[string]interface{}{{"id": 101, "purchase_order_id": 5}}})
		case r.Method == http.MethodGet && r.URL.Path == "/image-gallery/by-item":
			reply(w, 200, map[string]interface{}{"items": []map[string]interface{}{{"id": 3, "fk_item_id": 101}}})
		case r.Method == http.MethodPost && r.URL.Path == "/image-gallery/url":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "PURCHASE_ORDERS", body["fk_item_type"])
			reply(w, 201, map[string]interface{}{"id": 11, "fk_item_id": 101, "filename": "logo.png"})
		case r.Method == http.MethodDelete && r.URL.Path == "/image-gallery/3":
			reply(w, 200, map[string]interface{}{"affected": 1})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 40400, "message": "not found"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&config.Config{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--base-url", baseURL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestLinkCmd(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls)

	out, err := runCmd(t, srv.URL, "link", "--po", "5", "--item", "101", "--url", "https://cdn.example.com/logo.png", "--type", "LOGO")
	require.NoError(t, err)
	assert.Contains(t, out, "linked image 11 (logo.png) to item 101")
	assert.Equal(t, []string{"GET /purchase-orders-items/purchase-order/5", "POST /image-gallery/url"}, calls)
}

func TestLinkCmd_ItemNotOnPurchaseOrder(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls)

	_, err := runCmd(t, srv.URL, "link", "--po", "5", "--item", "999", "--url", "https://cdn.example.com/logo.png")
	require.ErrorIs(t, err, workflow.ErrUnknownItem)
	assert.Len(t, calls, 1)
}

func TestDetachCmd(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls)

	out, err := runCmd(t, srv.URL, "detach", "--po", "5", "--item", "101", "--image", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 image(s) from item 101")
	assert.Contains(t, calls, "DELETE /image-gallery/3")

	calls = nil
	_, err = runCmd(t, srv.URL, "detach", "--po", "5", "--item", "101", "--image", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not attached")
	assert.NotContains(t, calls, "DELETE /image-gallery/4")
}

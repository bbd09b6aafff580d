package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": message,
		"data":    data,
	})
}

func TestClient_FetchImageGallery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/image-gallery/by-item", r.URL.Path)
		assert.Equal(t, "101", r.URL.Query().Get("fkItemID"))
		assert.Equal(t, "PURCHASE_ORDERS", r.URL.Query().Get("fkItemType"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeEnvelope(w, 200, 0, "success", map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": 1, "fk_item_id": 101, "fk_item_type": "PURCHASE_ORDERS", "url": "https://cdn/x.png", "type": "LOGO"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1/", "tok", time.Second)
	images, err := c.FetchImageGallery(context.Background(), 101, "PURCHASE_ORDERS")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(101), images[0].FKItemID)
	assert.Equal(t, "LOGO", images[0].Type)

	records := ToRecords(images)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
	assert.Equal(t, "https://cdn/x.png", records[0].URL)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 404, 40400, "采购订单不存在", nil)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	_, err := c.GetPurchaseOrder(context.Background(), 9)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.Status)
	assert.Equal(t, 40400, apiErr.Code)
	assert.True(t, apiErr.NotFound())
	assert.Contains(t, apiErr.Error(), "采购订单不存在")
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).GetVendor(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestClient_CreateImageMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/image-gallery", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("fkItemID"))
		assert.Equal(t, "PURCHASE_ORDERS", r.FormValue("fkItemType"))
		assert.Equal(t, "ARTWORK", r.FormValue("type"))

		f, hdr, err := r.FormFile("imageFile")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "logo.png", hdr.Filename)
		assert.Equal(t, "pngbytes", string(body))

		writeEnvelope(w, 201, 0, "success", map[string]interface{}{"id": 7, "fk_item_id": 42})
	}))
	defer srv.Close()

	img, err := New(srv.URL, "", time.Second).CreateImage(context.Background(), CreateImageParams{
		FKItemID:   42,
		FKItemType: "PURCHASE_ORDERS",
		Type:       "ARTWORK",
		Filename:   "logo.png",
		File:       strings.NewReader("pngbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), img.ID)
}

func TestClient_CreateImageRequiresFile(t *testing.T) {
	_, err := New("http://unused", "", time.Second).CreateImage(context.Background(), CreateImageParams{FKItemID: 1})
	assert.Error(t, err)
}

func TestClient_UpdatePurchaseOrderSendsPartialBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/purchase-orders/5", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(2), body["status"])
		assert.Nil(t, body["notes"])
		writeEnvelope(w, 200, 0, "success", map[string]interface{}{"id": 5, "status": 2})
	}))
	defer srv.Close()

	status := 2
	po, err := New(srv.URL, "", time.Second).UpdatePurchaseOrder(context.Background(), 5, &service.UpdatePORequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 2, po.Status)
}

func TestClient_GalleryFetcher(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeEnvelope(w, 500, 50000, "boom", nil)
			return
		}
		writeEnvelope(w, 200, 0, "success", map[string]interface{}{
			"items": []map[string]interface{}{{"id": 3, "fk_item_id": 8}},
		})
	}))
	defer srv.Close()

	f := New(srv.URL, "", time.Second).GalleryFetcher("PURCHASE_ORDERS")
	_, err := f.FetchGallery(context.Background(), 8)
	assert.Error(t, err)

	records, err := f.FetchGallery(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(8), records[0].FKItemID)
}

func TestClient_ListPurchaseOrdersQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "URGENT", r.URL.Query().Get("priority"))
		assert.Empty(t, r.URL.Query().Get("status"))
		writeEnvelope(w, 200, 0, "success", map[string]interface{}{
			"items":      []map[string]interface{}{{"id": 1}},
			"pagination": map[string]interface{}{"page": 2, "page_size": 20, "total": 21, "total_pages": 2},
		})
	}))
	defer srv.Close()

	page, err := New(srv.URL, "", time.Second).ListPurchaseOrders(context.Background(), 2, 20, map[string]string{"priority": "URGENT", "status": ""})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 21, page.Pagination.Total)
}

func TestClient_CreateImageFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/image-gallery/url", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(42), body["fk_item_id"])
		assert.Equal(t, "PURCHASE_ORDERS", body["fk_item_type"])
		assert.Equal(t, "https://cdn.example.com/art/logo.svg", body["url"])
		assert.Equal(t, "LOGO", body["type"])

		writeEnvelope(w, 201, 0, "success", map[string]interface{}{
			"id": 9, "fk_item_id": 42, "url": body["url"], "filename": "logo.svg", "file_extension": "svg",
		})
	}))
	defer srv.Close()

	img, err := New(srv.URL, "", time.Second).CreateImageFromURL(context.Background(), &service.CreateImageURLRequest{
		FKItemID:   42,
		FKItemType: "PURCHASE_ORDERS",
		URL:        "https://cdn.example.com/art/logo.svg",
		Type:       "LOGO",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), img.ID)
	assert.Equal(t, "svg", img.FileExtension)
}

func TestClient_DeleteImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/image-gallery/3":
			writeEnvelope(w, 200, 0, "success", map[string]interface{}{"affected": 1, "message": "Image deleted"})
		default:
			writeEnvelope(w, 200, 0, "success", map[string]interface{}{"affected": 0, "message": "Image not found"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	n, err := c.DeleteImage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.DeleteImage(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, n)
}

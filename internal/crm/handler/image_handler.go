package handler

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/gin-gonic/gin"
)

// ImageHandler 图片库处理器
type ImageHandler struct {
	svc *service.ImageService
}

func NewImageHandler(svc *service.ImageService) *ImageHandler {
	return &ImageHandler{svc: svc}
}

// List GET /api/v1/image-gallery?fk_item_type=&type=
func (h *ImageHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, queryFilters(c, "fk_item_type", "type"))
	if err != nil {
		InternalError(c, "获取图片列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// ByItem 某业务单据的图片（创建时间倒序）
// GET /api/v1/image-gallery/by-item?fkItemID=&fkItemType=
func (h *ImageHandler) ByItem(c *gin.Context) {
	fkItemID, err := strconv.ParseInt(c.Query("fkItemID"), 10, 64)
	if err != nil || fkItemID <= 0 {
		BadRequest(c, "fkItemID 无效")
		return
	}
	images, err := h.svc.ByItem(c.Request.Context(), fkItemID, c.Query("fkItemType"))
	if err != nil {
		handleError(c, err, "图片不存在", "获取图片")
		return
	}
	Success(c, gin.H{"items": images})
}

// Get GET /api/v1/image-gallery/:id
func (h *ImageHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	img, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "图片不存在", "获取图片")
		return
	}
	Success(c, img)
}

// Upload 上传图片（multipart: imageFile, fkItemID, fkItemType, description, type）
// POST /api/v1/image-gallery
func (h *ImageHandler) Upload(c *gin.Context) {
	fkItemID, err := strconv.ParseInt(c.PostForm("fkItemID"), 10, 64)
	if err != nil {
		BadRequest(c, "fkItemID 无效")
		return
	}
	req := &service.UploadImageRequest{
		FKItemID:    fkItemID,
		FKItemType:  c.PostForm("fkItemType"),
		Type:        c.PostForm("type"),
		Description: c.PostForm("description"),
	}

	file, closeFn, err := formImage(c)
	if err != nil {
		BadRequest(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer closeFn()
	req.File = file

	img, err := h.svc.Upload(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "图片不存在", "上传图片")
		return
	}
	Created(c, img)
}

// CreateFromURL 登记外部图片地址
// POST /api/v1/image-gallery/url
func (h *ImageHandler) CreateFromURL(c *gin.Context) {
	var req service.CreateImageURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	img, err := h.svc.CreateFromURL(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "图片不存在", "登记图片")
		return
	}
	Created(c, img)
}

// Update 更新图片，multipart 时可附带新文件替换旧对象
// PUT /api/v1/image-gallery/:id
func (h *ImageHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateImageRequest
	var file *service.UploadFile
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if v, ok := c.GetPostForm("fkItemID"); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				BadRequest(c, "fkItemID 无效")
				return
			}
			req.FKItemID = &n
		}
		req.FKItemType = postFormPtr(c, "fkItemType")
		req.URL = postFormPtr(c, "url")
		req.Type = postFormPtr(c, "type")
		req.Description = postFormPtr(c, "description")

		f, closeFn, err := formImage(c)
		if err != nil {
			BadRequest(c, "读取上传文件失败: "+err.Error())
			return
		}
		defer closeFn()
		file = f
	} else if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	img, err := h.svc.Update(c.Request.Context(), id, &req, file)
	if err != nil {
		handleError(c, err, "图片不存在", "更新图片")
		return
	}
	Success(c, img)
}

// Delete 删除图片，不存在时 affected 为 0
// DELETE /api/v1/image-gallery/:id
func (h *ImageHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	affected, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "删除图片失败: "+err.Error())
		return
	}
	message := "Image deleted successfully"
	if affected == 0 {
		message = "Image not found"
	}
	Success(c, gin.H{"affected": affected, "message": message})
}

// formImage 读取 imageFile 字段；未上传时返回 nil
func formImage(c *gin.Context) (*service.UploadFile, func(), error) {
	noop := func() {}
	fh, err := c.FormFile("imageFile")
	if err != nil {
		return nil, noop, nil
	}
	return openUpload(fh)
}

func openUpload(fh *multipart.FileHeader) (*service.UploadFile, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.UploadFile{Filename: fh.Filename, Reader: f}, func() { f.Close() }, nil
}

func postFormPtr(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok {
		return &v
	}
	return nil
}

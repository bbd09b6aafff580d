package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/shared/imageproc"
	"github.com/bitfantasy/nimo-crm/internal/shared/storage"
	"go.uber.org/zap"
)

// ImageService 图片库服务
type ImageService struct {
	repo   *repository.ImageRepository
	store  storage.ObjectStore
	hub    *sse.Hub
	opts   imageproc.Options
	logger *zap.Logger
	now    func() time.Time
}

func NewImageService(repo *repository.ImageRepository, store storage.ObjectStore, hub *sse.Hub, opts imageproc.Options, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageService{repo: repo, store: store, hub: hub, opts: opts, logger: logger, now: time.Now}
}

func (s *ImageService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ImageGallery, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// ByItem 某业务对象的图片
func (s *ImageService) ByItem(ctx context.Context, fkItemID int64, fkItemType string) ([]entity.ImageGallery, error) {
	if !entity.ValidItemType(fkItemType) {
		return nil, ErrInvalidItemType
	}
	return s.repo.FindByItem(ctx, fkItemID, fkItemType)
}

func (s *ImageService) Get(ctx context.Context, id int64) (*entity.ImageGallery, error) {
	return s.repo.FindByID(ctx, id)
}

// UploadFile 上传的文件
type UploadFile struct {
	Filename string
	Reader   io.Reader
}

// UploadImageRequest 上传图片请求
type UploadImageRequest struct {
	FKItemID    int64
	FKItemType  string
	Type        string
	Description string
	File        *UploadFile
}

// Upload 处理并存储图片，写入图片库记录
func (s *ImageService) Upload(ctx context.Context, req *UploadImageRequest) (*entity.ImageGallery, error) {
	if req.File == nil || req.File.Reader == nil {
		return nil, ErrFileRequired
	}
	if err := checkOwner(req.FKItemID, req.FKItemType); err != nil {
		return nil, err
	}

	img := &entity.ImageGallery{
		FKItemID:    req.FKItemID,
		FKItemType:  req.FKItemType,
		Type:        entity.NormalizeImageType(req.Type),
		Description: req.Description,
	}
	if err := s.storeFile(ctx, img, req.File); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, img); err != nil {
		s.removeObjects(ctx, img)
		return nil, fmt.Errorf("保存图片记录失败: %w", err)
	}
	s.hub.PublishImageUpdate(img.FKItemID, img.FKItemType, img.ID, "created")
	return img, nil
}

// CreateImageURLRequest 通过URL登记图片
type CreateImageURLRequest struct {
	FKItemID    int64  `json:"fk_item_id" binding:"required"`
	FKItemType  string `json:"fk_item_type" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CreateFromURL 登记外部图片，不写对象存储
func (s *ImageService) CreateFromURL(ctx context.Context, req *CreateImageURLRequest) (*entity.ImageGallery, error) {
	if err := checkOwner(req.FKItemID, req.FKItemType); err != nil {
		return nil, err
	}
	filename, ext := FilenameFromURL(req.URL)
	img := &entity.ImageGallery{
		FKItemID:      req.FKItemID,
		FKItemType:    req.FKItemType,
		URL:           req.URL,
		Filename:      filename,
		FileExtension: ext,
		Type:          entity.NormalizeImageType(req.Type),
		Description:   req.Description,
	}
	if err := s.repo.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("保存图片记录失败: %w", err)
	}
	s.hub.PublishImageUpdate(img.FKItemID, img.FKItemType, img.ID, "created")
	return img, nil
}

// UpdateImageRequest 更新图片请求
type UpdateImageRequest struct {
	FKItemID    *int64  `json:"fk_item_id"`
	FKItemType  *string `json:"fk_item_type"`
	URL         *string `json:"url"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
}

// Update 更新图片；带新文件时先删除旧对象再上传
func (s *ImageService) Update(ctx context.Context, id int64, req *UpdateImageRequest, file *UploadFile) (*entity.ImageGallery, error) {
	img, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FKItemType != nil {
		if !entity.ValidItemType(*req.FKItemType) {
			return nil, ErrInvalidItemType
		}
		img.FKItemType = *req.FKItemType
	}
	if req.FKItemID != nil {
		img.FKItemID = *req.FKItemID
	}
	if req.Type != nil {
		img.Type = entity.NormalizeImageType(*req.Type)
	}
	if req.Description != nil {
		img.Description = *req.Description
	}

	switch {
	case file != nil && file.Reader != nil:
		s.removeObjects(ctx, img)
		img.ThumbnailURL = ""
		if err := s.storeFile(ctx, img, file); err != nil {
			return nil, err
		}
	case req.URL != nil && *req.URL != img.URL:
		s.removeObjects(ctx, img)
		img.URL = *req.URL
		img.Filename, img.FileExtension = FilenameFromURL(*req.URL)
		img.ThumbnailURL = ""
		img.Stored = false
	}

	if err := s.repo.Update(ctx, img); err != nil {
		return nil, fmt.Errorf("更新图片记录失败: %w", err)
	}
	s.hub.PublishImageUpdate(img.FKItemID, img.FKItemType, img.ID, "updated")
	return img, nil
}

// Delete 删除对象与记录，返回受影响行数；记录不存在时返回0
func (s *ImageService) Delete(ctx context.Context, id int64) (int64, error) {
	img, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	s.removeObjects(ctx, img)
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("删除图片记录失败: %w", err)
	}
	if affected > 0 {
		s.hub.PublishImageUpdate(img.FKItemID, img.FKItemType, img.ID, "deleted")
	}
	return affected, nil
}

// storeFile 处理图片并写入对象存储，无法解码的设计稿按原样存储
func (s *ImageService) storeFile(ctx context.Context, img *entity.ImageGallery, file *UploadFile) error {
	if s.store == nil {
		return storage.ErrNotConfigured
	}
	raw, err := io.ReadAll(file.Reader)
	if err != nil {
		return fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(raw) == 0 {
		return ErrFileRequired
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(file.Filename)), ".")
	data, contentType := raw, imageproc.ContentTypeForExtension(ext)
	var thumb []byte

	res, err := imageproc.Process(bytes.NewReader(raw), ext, s.opts)
	switch {
	case err == nil:
		data, contentType, ext, thumb = res.Data, res.ContentType, res.Extension, res.Thumbnail
	case errors.Is(err, imageproc.ErrNotImage):
		s.logger.Debug("storing file without processing", zap.String("filename", file.Filename), zap.Error(err))
	default:
		return fmt.Errorf("处理图片失败: %w", err)
	}

	prefix := path.Join("image-gallery", strings.ToLower(img.FKItemType))
	key := storage.ObjectKey(prefix, ext, s.now())
	if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return fmt.Errorf("上传图片失败: %w", err)
	}
	img.URL = s.store.URL(key)
	img.Filename = key
	img.FileExtension = ext
	img.Stored = true

	if len(thumb) > 0 {
		tk := storage.ThumbnailKey(key)
		if err := s.store.Put(ctx, tk, bytes.NewReader(thumb), int64(len(thumb)), contentType); err != nil {
			s.logger.Warn("thumbnail upload failed", zap.String("key", tk), zap.Error(err))
		} else {
			img.ThumbnailURL = s.store.URL(tk)
		}
	}
	return nil
}

// removeObjects 删除存储中的原图和缩略图，失败只记录日志
func (s *ImageService) removeObjects(ctx context.Context, img *entity.ImageGallery) {
	if !img.Stored || img.Filename == "" || s.store == nil {
		return
	}
	keys := []string{img.Filename}
	if img.ThumbnailURL != "" {
		keys = append(keys, storage.ThumbnailKey(img.Filename))
	}
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			s.logger.Warn("delete object failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func checkOwner(fkItemID int64, fkItemType string) error {
	if fkItemID <= 0 {
		return validationError("fkItemID 无效")
	}
	if !entity.ValidItemType(fkItemType) {
		return ErrInvalidItemType
	}
	return nil
}

// FilenameFromURL 取URL末段为文件名，最后一个点之后为扩展名，缺省 jpg
func FilenameFromURL(raw string) (filename, ext string) {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		filename = p[i+1:]
	} else {
		filename = p
	}
	ext = "jpg"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = strings.ToLower(filename[i+1:])
	}
	return filename, ext
}

package service

import (
	"context"
	"log"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
)

// ActivityService 单据操作记录
type ActivityService struct {
	repo *repository.ActivityRepository
}

func NewActivityService(repo *repository.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Record 记录一条采购订单操作，失败不影响主流程
func (s *ActivityService) Record(ctx context.Context, po *entity.PurchaseOrder, activityType, activity, userID string) {
	a := &entity.ActivityHistory{
		DocumentID:   po.ID,
		DocumentType: entity.DocumentTypePurchaseOrders,
		Activity:     activity,
		ActivityType: activityType,
		CustomerID:   po.CustomerID,
		Status:       po.Status,
		UserOwner:    userID,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		log.Printf("[CRM] record activity for po %d failed: %v", po.ID, err)
	}
}

// List 查询单据操作记录
func (s *ActivityService) List(ctx context.Context, documentType string, documentID int64) ([]entity.ActivityHistory, error) {
	if documentType == "" {
		documentType = entity.DocumentTypePurchaseOrders
	}
	return s.repo.FindByDocument(ctx, documentType, documentID)
}

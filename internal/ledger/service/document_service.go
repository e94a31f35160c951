package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/bitfantasy/cargotrack/internal/shared/storage"
	"github.com/google/uuid"
)

var ErrStorageUnavailable = errors.New("document storage not configured")

// DocumentService 运单单证服务，文件存对象存储，元数据入账本
type DocumentService struct {
	ledger    *Ledger
	store     storage.ObjectStore
	urlExpiry time.Duration
}

func NewDocumentService(ledger *Ledger, store storage.ObjectStore) *DocumentService {
	return &DocumentService{
		ledger:    ledger,
		store:     store,
		urlExpiry: 15 * time.Minute,
	}
}

// UploadDocumentRequest 上传单证请求
type UploadDocumentRequest struct {
	Kind        string
	FileName    string
	ContentType string
	Size        int64
}

func validDocumentKind(kind string) bool {
	switch kind {
	case entity.DocumentBillOfLading, entity.DocumentCustomsDeclaration, entity.DocumentPackingList, entity.DocumentOther:
		return true
	}
	return false
}

func (s *DocumentService) checkParty(ctx context.Context, caller string, shipmentID uint64) error {
	shipment, err := s.ledger.repos.Shipment.FindByID(ctx, shipmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrShipmentNotFound.With("shipment %d", shipmentID)
	}
	if err != nil {
		return err
	}
	if caller == shipment.Carrier || s.ledger.IsAdmin(caller) {
		return nil
	}
	order, err := s.ledger.repos.Order.FindByID(ctx, shipment.OrderID)
	if err != nil {
		return err
	}
	if caller == order.Manufacturer || caller == order.Supplier {
		return nil
	}
	return ErrUnauthorized.With("caller is not a party of shipment %d", shipmentID)
}

// UploadDocument 上传运单单证
func (s *DocumentService) UploadDocument(ctx context.Context, caller string, shipmentID uint64, req *UploadDocumentRequest, reader io.Reader) (*entity.ShipmentDocument, error) {
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}
	if req.Kind == "" {
		req.Kind = entity.DocumentOther
	}
	if !validDocumentKind(req.Kind) {
		return nil, ErrInvalidArgument.With("document kind %q", req.Kind)
	}
	if err := s.checkParty(ctx, caller, shipmentID); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	objectKey := fmt.Sprintf("shipments/%d/%s%s", shipmentID, id[:8], strings.ToLower(filepath.Ext(req.FileName)))
	if err := s.store.Put(ctx, objectKey, reader, req.Size, req.ContentType); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	var doc *entity.ShipmentDocument
	err := s.ledger.apply(ctx, "uploadDocument", caller, func(tx *Tx) error {
		shipment, err := tx.Shipment(shipmentID)
		if err != nil {
			return err
		}
		doc = &entity.ShipmentDocument{
			ID:          id,
			ShipmentID:  shipmentID,
			Kind:        req.Kind,
			FileName:    filepath.Base(req.FileName),
			ObjectKey:   objectKey,
			ContentType: req.ContentType,
			Size:        req.Size,
			UploadedBy:  caller,
			CreatedAt:   tx.Now,
		}
		if err := tx.Repos.Document.Create(tx.Ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		tx.Emit(entity.EventDocumentUploaded, orderRef(shipment.OrderID), caller, entity.JSONB{
			"shipment_id": shipmentID,
			"document_id": id,
			"kind":        req.Kind,
			"file_name":   doc.FileName,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments 运单单证列表
func (s *DocumentService) ListDocuments(ctx context.Context, caller string, shipmentID uint64) ([]entity.ShipmentDocument, error) {
	if err := s.checkParty(ctx, caller, shipmentID); err != nil {
		return nil, err
	}
	return s.ledger.repos.Document.ListByShipment(ctx, shipmentID)
}

// DocumentURL 生成单证临时下载链接
func (s *DocumentService) DocumentURL(ctx context.Context, caller, documentID string) (string, error) {
	if s.store == nil {
		return "", ErrStorageUnavailable
	}
	doc, err := s.ledger.repos.Document.FindByID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrDocumentNotFound.With("document %s", documentID)
	}
	if err != nil {
		return "", err
	}
	if err := s.checkParty(ctx, caller, doc.ShipmentID); err != nil {
		return "", err
	}
	return s.store.PresignedURL(ctx, doc.ObjectKey, s.urlExpiry, doc.FileName)
}

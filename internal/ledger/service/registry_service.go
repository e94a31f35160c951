package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/bitfantasy/cargotrack/internal/shared/units"
	"github.com/shopspring/decimal"
)

// RegistryService 参与方注册服务
type RegistryService struct {
	ledger *Ledger
}

func NewRegistryService(ledger *Ledger) *RegistryService {
	return &RegistryService{ledger: ledger}
}

// RegisterManufacturerRequest 注册制造商请求
type RegisterManufacturerRequest struct {
	Address         string            `json:"address" binding:"required"`
	Name            string            `json:"name" binding:"required"`
	AuthorizedParts []entity.PartType `json:"authorized_parts"`
}

// RegisterManufacturer 注册制造商（仅管理员）
func (s *RegistryService) RegisterManufacturer(ctx context.Context, caller string, req *RegisterManufacturerRequest) (*entity.Manufacturer, error) {
	if !s.ledger.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidArgument.With("name is required")
	}
	parts := make(entity.PartTypes, 0, len(req.AuthorizedParts))
	for _, p := range req.AuthorizedParts {
		if !p.Valid() {
			return nil, ErrInvalidPart.With("part type %d", p)
		}
		if !parts.Contains(p) {
			parts = append(parts, p)
		}
	}

	var m *entity.Manufacturer
	err = s.ledger.apply(ctx, "registerManufacturer", caller, func(tx *Tx) error {
		if _, err := tx.Repos.Participant.FindManufacturer(tx.Ctx, address); err == nil {
			return ErrAlreadyRegistered.With("manufacturer %s", address)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		m = &entity.Manufacturer{
			Address:         address,
			Name:            name,
			AuthorizedParts: parts,
			IsRegistered:    true,
			RegisteredAt:    tx.Now,
		}
		if err := tx.Repos.Participant.CreateManufacturer(tx.Ctx, m); err != nil {
			return fmt.Errorf("create manufacturer: %w", err)
		}
		names := make([]string, len(parts))
		for i, p := range parts {
			names[i] = p.String()
		}
		tx.Emit(entity.EventManufacturerRegistered, nil, address, entity.JSONB{
			"manufacturer": address,
			"name":         name,
			"parts":        names,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterSupplierRequest 注册供应商请求，价格按 Engine/Transmission/BrakeAssembly 顺序
type RegisterSupplierRequest struct {
	Address string                                `json:"address" binding:"required"`
	Name    string                                `json:"name" binding:"required"`
	Prices  [entity.PartTypeCount]decimal.Decimal `json:"prices"`
}

// RegisterSupplier 注册供应商（仅管理员）
func (s *RegistryService) RegisterSupplier(ctx context.Context, caller string, req *RegisterSupplierRequest) (*entity.Supplier, error) {
	if !s.ledger.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidArgument.With("name is required")
	}
	if err := validatePrices(req.Prices); err != nil {
		return nil, err
	}

	var sup *entity.Supplier
	err = s.ledger.apply(ctx, "registerSupplier", caller, func(tx *Tx) error {
		if _, err := tx.Repos.Participant.FindSupplier(tx.Ctx, address); err == nil {
			return ErrAlreadyRegistered.With("supplier %s", address)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		sup = &entity.Supplier{
			Address:      address,
			Name:         name,
			IsRegistered: true,
			RegisteredAt: tx.Now,
			UpdatedAt:    tx.Now,
		}
		sup.SetPrices(req.Prices)
		if err := tx.Repos.Participant.CreateSupplier(tx.Ctx, sup); err != nil {
			return fmt.Errorf("create supplier: %w", err)
		}
		tx.Emit(entity.EventSupplierRegistered, nil, address, entity.JSONB{
			"supplier": address,
			"name":     name,
			"prices":   priceStrings(req.Prices),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sup, nil
}

// UpdatePricesRequest 更新价格表请求
type UpdatePricesRequest struct {
	Prices [entity.PartTypeCount]decimal.Decimal `json:"prices"`
}

// UpdateSupplierPrices 修订供应商价格表（仅管理员），已有订单保持下单时的单价
func (s *RegistryService) UpdateSupplierPrices(ctx context.Context, caller, address string, req *UpdatePricesRequest) (*entity.Supplier, error) {
	if !s.ledger.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if err := validatePrices(req.Prices); err != nil {
		return nil, err
	}

	var sup *entity.Supplier
	err = s.ledger.apply(ctx, "updateSupplierPrices", caller, func(tx *Tx) error {
		var err error
		sup, err = tx.Repos.Participant.FindSupplier(tx.Ctx, addr)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantMissing.With("supplier %s", addr)
		}
		if err != nil {
			return err
		}
		sup.SetPrices(req.Prices)
		sup.UpdatedAt = tx.Now
		if err := tx.Repos.Participant.UpdateSupplier(tx.Ctx, sup); err != nil {
			return fmt.Errorf("update supplier prices: %w", err)
		}
		tx.Emit(entity.EventSupplierPricesUpdated, nil, sup.Address, entity.JSONB{
			"supplier": sup.Address,
			"prices":   priceStrings(req.Prices),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sup, nil
}

// RegisterCarrierRequest 注册承运商请求
type RegisterCarrierRequest struct {
	Address string `json:"address" binding:"required"`
	Name    string `json:"name" binding:"required"`
}

// RegisterCarrier 注册承运商（仅管理员）
func (s *RegistryService) RegisterCarrier(ctx context.Context, caller string, req *RegisterCarrierRequest) (*entity.Carrier, error) {
	if !s.ledger.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidArgument.With("name is required")
	}

	var c *entity.Carrier
	err = s.ledger.apply(ctx, "registerCarrier", caller, func(tx *Tx) error {
		if _, err := tx.Repos.Participant.FindCarrier(tx.Ctx, address); err == nil {
			return ErrAlreadyRegistered.With("carrier %s", address)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		c = &entity.Carrier{
			Address:      address,
			Name:         name,
			IsRegistered: true,
			RegisteredAt: tx.Now,
		}
		if err := tx.Repos.Participant.CreateCarrier(tx.Ctx, c); err != nil {
			return fmt.Errorf("create carrier: %w", err)
		}
		tx.Emit(entity.EventCarrierRegistered, nil, address, entity.JSONB{
			"carrier": address,
			"name":    name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IsAuthorizedForPart 制造商是否被授权采购该零件，未注册返回false
func (s *RegistryService) IsAuthorizedForPart(ctx context.Context, address string, part entity.PartType) (bool, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	m, err := s.ledger.repos.Participant.FindManufacturer(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsAuthorizedFor(part), nil
}

// GetManufacturer 获取制造商
func (s *RegistryService) GetManufacturer(ctx context.Context, address string) (*entity.Manufacturer, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	m, err := s.ledger.repos.Participant.FindManufacturer(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrParticipantMissing.With("manufacturer %s", addr)
	}
	return m, err
}

// GetSupplier 获取供应商（含价格表）
func (s *RegistryService) GetSupplier(ctx context.Context, address string) (*entity.Supplier, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	sup, err := s.ledger.repos.Participant.FindSupplier(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrParticipantMissing.With("supplier %s", addr)
	}
	return sup, err
}

// GetCarrier 获取承运商
func (s *RegistryService) GetCarrier(ctx context.Context, address string) (*entity.Carrier, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	c, err := s.ledger.repos.Participant.FindCarrier(ctx, addr)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrParticipantMissing.With("carrier %s", addr)
	}
	return c, err
}

// ListManufacturers 制造商列表
func (s *RegistryService) ListManufacturers(ctx context.Context) ([]entity.Manufacturer, error) {
	return s.ledger.repos.Participant.ListManufacturers(ctx)
}

// ListSuppliers 供应商列表
func (s *RegistryService) ListSuppliers(ctx context.Context) ([]entity.Supplier, error) {
	return s.ledger.repos.Participant.ListSuppliers(ctx)
}

// ListCarriers 承运商列表
func (s *RegistryService) ListCarriers(ctx context.Context) ([]entity.Carrier, error) {
	return s.ledger.repos.Participant.ListCarriers(ctx)
}

// Roles 地址在账本中的角色
func (s *RegistryService) Roles(ctx context.Context, address string) ([]string, error) {
	var roles []string
	if s.ledger.IsAdmin(address) {
		roles = append(roles, RoleAdmin)
	}
	if _, err := s.ledger.repos.Participant.FindManufacturer(ctx, address); err == nil {
		roles = append(roles, RoleManufacturer)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.ledger.repos.Participant.FindSupplier(ctx, address); err == nil {
		roles = append(roles, RoleSupplier)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.ledger.repos.Participant.FindCarrier(ctx, address); err == nil {
		roles = append(roles, RoleCarrier)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return roles, nil
}

// 角色
const (
	RoleAdmin        = "admin"
	RoleManufacturer = "manufacturer"
	RoleSupplier     = "supplier"
	RoleCarrier      = "carrier"
)

func validatePrices(prices [entity.PartTypeCount]decimal.Decimal) error {
	for i, p := range prices {
		if !units.IsWholeWei(p) {
			return ErrInvalidArgument.With("price for %s must be a non-negative whole wei amount", entity.PartType(i))
		}
		if !entity.FitsAmountColumn(p) {
			return ErrInvalidArgument.With("price for %s exceeds %d digits", entity.PartType(i), entity.AmountDigits)
		}
	}
	return nil
}

func priceStrings(prices [entity.PartTypeCount]decimal.Decimal) []string {
	out := make([]string, len(prices))
	for i, p := range prices {
		out[i] = p.String()
	}
	return out
}

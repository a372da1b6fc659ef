package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, customerID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND idempotency_key = ?", customerID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// ステータスCAS。現在値がfromのときだけ更新
func (r *OrderGormRepository) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 未割当のときだけパートナー割当
func (r *OrderGormRepository) AssignPartnerIf(ctx context.Context, orderID int64, partnerID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND delivery_partner_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"delivery_partner_id": partnerID,
			"driver_accepted_at":  at,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) SetAccepted(ctx context.Context, orderID int64, at time.Time) error {
	return r.setOnce(ctx, orderID, "accepted_at", at)
}

func (r *OrderGormRepository) SetPickedUp(ctx context.Context, orderID int64, at time.Time) error {
	return r.setOnce(ctx, orderID, "picked_up_at", at)
}

func (r *OrderGormRepository) SetDelivered(ctx context.Context, orderID int64, at time.Time, actualMins int64) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND delivered_at IS NULL", orderID).
		Updates(map[string]interface{}{
			"delivered_at":         at,
			"actual_delivery_mins": actualMins,
		})
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *OrderGormRepository) SetCancelled(ctx context.Context, orderID int64, at time.Time, reason string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND cancelled_at IS NULL", orderID).
		Updates(map[string]interface{}{
			"cancelled_at":        at,
			"cancellation_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	return nil
}

func (r *OrderGormRepository) SetPaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus, gatewayRef string) error {
	values := map[string]interface{}{"payment_status": status}
	if gatewayRef != "" {
		values["gateway_ref"] = gatewayRef
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 支払ステータスCAS。現在値がfromのときだけ更新（台帳の二重記帳防止）
func (r *OrderGormRepository) SetPaymentStatusIf(ctx context.Context, orderID int64, from model.PaymentStatus, to model.PaymentStatus, gatewayRef string) (bool, error) {
	values := map[string]interface{}{"payment_status": to}
	if gatewayRef != "" {
		values["gateway_ref"] = gatewayRef
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) SetSettlementStatus(ctx context.Context, orderID int64, status model.SettlementStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("settlement_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) ListByStatus(ctx context.Context, status model.OrderStatus, olderThan time.Time, limit int) ([]model.Order, error) {
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at <= ?", status, olderThan).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) CountDelivered(ctx context.Context, restaurantID int64, from time.Time, to time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("restaurant_id = ? AND status = ? AND delivered_at >= ? AND delivered_at < ?",
			restaurantID, model.OrderStatusDelivered, from, to).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// タイムスタンプは1回だけ設定（NULLのときだけ書く）
func (r *OrderGormRepository) setOnce(ctx context.Context, orderID int64, column string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND "+column+" IS NULL", orderID).
		Update(column, at)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

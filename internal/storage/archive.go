package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"okx-stoch-sentry/pkg/types"
)

// KLine 数据库K线模型，(symbol, granularity, open_time) 唯一
type KLine struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Symbol      string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_symbol_bar_time" json:"symbol"`
	Granularity string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_symbol_bar_time" json:"granularity"`
	OpenTime    int64     `gorm:"not null;uniqueIndex:uk_symbol_bar_time" json:"open_time"` // 毫秒
	Open        float64   `gorm:"type:decimal(30,12);not null" json:"open"`
	High        float64   `gorm:"type:decimal(30,12);not null" json:"high"`
	Low         float64   `gorm:"type:decimal(30,12);not null" json:"low"`
	Close       float64   `gorm:"type:decimal(30,12);not null" json:"close"`
	Volume      float64   `gorm:"type:decimal(30,8);not null" json:"volume"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (KLine) TableName() string {
	return "klines"
}

// Archive K线归档，只做留存，不参与信号判断
type Archive struct {
	db *gorm.DB
}

// DSN 构建MySQL连接串
func DSN(config types.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)
}

// Open 连接MySQL并迁移表结构
func Open(config types.MySQLConfig) (*Archive, error) {
	db, err := gorm.Open(mysql.Open(DSN(config)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	archive := NewArchive(db)
	if err := archive.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))

	return archive, nil
}

// NewArchive 使用已有连接创建归档
func NewArchive(db *gorm.DB) *Archive {
	return &Archive{db: db}
}

// AutoMigrate 自动迁移表结构
func (a *Archive) AutoMigrate() error {
	return a.db.AutoMigrate(&KLine{})
}

// SaveWindow 写入窗口中的K线，已存在的K线更新价格与成交量
func (a *Archive) SaveWindow(ctx context.Context, window types.PriceWindow) error {
	if window.Len() == 0 {
		return nil
	}

	rows := make([]KLine, 0, window.Len())
	for _, bar := range window.Bars {
		rows = append(rows, KLine{
			Symbol:      window.Symbol,
			Granularity: window.Granularity.String(),
			OpenTime:    bar.OpenTime.UnixMilli(),
			Open:        bar.Open,
			High:        bar.High,
			Low:         bar.Low,
			Close:       bar.Close,
			Volume:      bar.Volume,
		})
	}

	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "granularity"}, {Name: "open_time"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "updated_at"}),
		}).
		Create(&rows).Error
}

// Close 关闭数据库连接
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package metrics

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Collector 指标收集器,定期从数据库刷新连接数与业务分布指标
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			_ = UpdateDatabaseConnections(c.db)
			_ = c.CollectOnce(c.ctx)
		}
	}
}

// CollectOnce 刷新一次业务分布指标
func (c *Collector) CollectOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	var rows []struct {
		Status string
		Total  int64
	}
	err := c.db.WithContext(ctx).
		Table("assignments").
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		UpdateAssignmentsByStatus(r.Status, float64(r.Total))
	}

	var pending int64
	if err := c.db.WithContext(ctx).Table("finance_collections").Where("status = ?", "pending").Count(&pending).Error; err != nil {
		return err
	}
	UpdatePendingCollections(float64(pending))
	return nil
}

package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// HealthChecker probes the record store and the coordination cache. A nil
// pool means the in-memory store is in use.
type HealthChecker struct {
	db    *pgxpool.Pool
	redis func(ctx context.Context) error
}

type HealthStatus struct {
	Status   string          `json:"status"`
	Database ComponentHealth `json:"database"`
	Redis    ComponentHealth `json:"redis"`
	System   *SystemStats    `json:"system,omitempty"`
}

type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// NewHealthChecker builds a checker. redisPing may be nil when Redis is not configured.
func NewHealthChecker(db *pgxpool.Pool, redisPing func(ctx context.Context) error) *HealthChecker {
	return &HealthChecker{db: db, redis: redisPing}
}

// CheckBasic reports unhealthy only when the record store is down. Redis
// has an in-process fallback so it never fails readiness.
func (h *HealthChecker) CheckBasic() HealthStatus {
	dbHealth := h.checkDatabase()

	status := StatusHealthy
	if dbHealth.Status == StatusUnhealthy {
		status = StatusUnhealthy
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
		Redis:    h.checkRedis(),
	}
}

// CheckDetailed adds host CPU, memory and disk usage.
func (h *HealthChecker) CheckDetailed() HealthStatus {
	status := h.CheckBasic()
	status.System = collectSystem()
	return status
}

func (h *HealthChecker) checkDatabase() ComponentHealth {
	if h.db == nil {
		return ComponentHealth{Status: StatusDisabled}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return probe(func() error { return h.db.Ping(ctx) })
}

func (h *HealthChecker) checkRedis() ComponentHealth {
	if h.redis == nil {
		return ComponentHealth{Status: StatusDisabled}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return probe(func() error { return h.redis(ctx) })
}

func probe(ping func() error) ComponentHealth {
	start := time.Now()
	err := ping()
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, ResponseTime: responseTime}
	}
	return ComponentHealth{Status: StatusHealthy, ResponseTime: responseTime}
}

func collectSystem() *SystemStats {
	stats := &SystemStats{}
	// Zero interval compares against the previous call instead of sleeping.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	}
	if du, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = du.UsedPercent
	}
	return stats
}

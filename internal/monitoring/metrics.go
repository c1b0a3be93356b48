// Package monitoring keeps in-process request metrics and runs the health
// checks behind the health, readiness and liveness endpoints.
package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	mu                   sync.RWMutex
	RequestCount         int64            `json:"request_count"`
	RequestDuration      time.Duration    `json:"avg_request_duration_ns"`
	ActiveRequests       int64            `json:"active_requests"`
	ErrorCount           int64            `json:"error_count"`
	StatusCodes          map[string]int64 `json:"status_codes"`
	Endpoints            map[string]int64 `json:"endpoint_calls"`
	CompensationFailures map[string]int64 `json:"compensation_failures"`
	StartTime            time.Time        `json:"start_time"`
	LastRequest          time.Time        `json:"last_request"`
	totalDuration        time.Duration
}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

type HealthChecker struct {
	checks map[string]HealthCheckFunc
	mu     sync.RWMutex
}

// StatsFunc reports component statistics for the metrics endpoint.
type StatsFunc func() interface{}

var globalMetrics = newMetrics()

var globalHealthChecker = &HealthChecker{
	checks: make(map[string]HealthCheckFunc),
}

var (
	statsMu        sync.RWMutex
	statsProviders = make(map[string]StatsFunc)
)

func newMetrics() *Metrics {
	return &Metrics{
		StatusCodes:          make(map[string]int64),
		Endpoints:            make(map[string]int64),
		CompensationFailures: make(map[string]int64),
		StartTime:            time.Now(),
	}
}

// Reset clears all metrics, health checks and stats providers.
func Reset() {
	m := newMetrics()

	globalMetrics.mu.Lock()
	globalMetrics.RequestCount = 0
	globalMetrics.RequestDuration = 0
	globalMetrics.ActiveRequests = 0
	globalMetrics.ErrorCount = 0
	globalMetrics.StatusCodes = m.StatusCodes
	globalMetrics.Endpoints = m.Endpoints
	globalMetrics.CompensationFailures = m.CompensationFailures
	globalMetrics.StartTime = m.StartTime
	globalMetrics.LastRequest = time.Time{}
	globalMetrics.totalDuration = 0
	globalMetrics.mu.Unlock()

	globalHealthChecker.mu.Lock()
	globalHealthChecker.checks = make(map[string]HealthCheckFunc)
	globalHealthChecker.mu.Unlock()

	statsMu.Lock()
	statsProviders = make(map[string]StatsFunc)
	statsMu.Unlock()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests++
		globalMetrics.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		globalMetrics.mu.Lock()
		globalMetrics.RequestCount++
		globalMetrics.ActiveRequests--
		globalMetrics.totalDuration += duration
		globalMetrics.RequestDuration = globalMetrics.totalDuration / time.Duration(globalMetrics.RequestCount)
		globalMetrics.LastRequest = time.Now()

		if statusCode >= 400 {
			globalMetrics.ErrorCount++
		}
		globalMetrics.StatusCodes[http.StatusText(statusCode)]++
		globalMetrics.Endpoints[endpoint]++
		globalMetrics.mu.Unlock()
	}
}

// RecordCompensationFailure counts a compensating write that failed at step.
func RecordCompensationFailure(step string) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()
	globalMetrics.CompensationFailures[step]++
}

func GetMetrics() *Metrics {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	metrics := &Metrics{
		RequestCount:         globalMetrics.RequestCount,
		RequestDuration:      globalMetrics.RequestDuration,
		ActiveRequests:       globalMetrics.ActiveRequests,
		ErrorCount:           globalMetrics.ErrorCount,
		StatusCodes:          make(map[string]int64, len(globalMetrics.StatusCodes)),
		Endpoints:            make(map[string]int64, len(globalMetrics.Endpoints)),
		CompensationFailures: make(map[string]int64, len(globalMetrics.CompensationFailures)),
		StartTime:            globalMetrics.StartTime,
		LastRequest:          globalMetrics.LastRequest,
	}

	for k, v := range globalMetrics.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range globalMetrics.Endpoints {
		metrics.Endpoints[k] = v
	}
	for k, v := range globalMetrics.CompensationFailures {
		metrics.CompensationFailures[k] = v
	}

	return metrics
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc_mb"`
	TotalAlloc uint64 `json:"total_alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime: uptime().String(),
		MemoryUsage: MemoryStats{
			Alloc:      bToMb(m.Alloc),
			TotalAlloc: bToMb(m.TotalAlloc),
			Sys:        bToMb(m.Sys),
			NumGC:      m.NumGC,
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func uptime() time.Duration {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()
	return time.Since(globalMetrics.StartTime).Round(time.Second)
}

func RegisterHealthCheck(name string, checkFunc HealthCheckFunc) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks[name] = checkFunc
}

func RegisterStatsProvider(name string, fn StatsFunc) {
	statsMu.Lock()
	defer statsMu.Unlock()
	statsProviders[name] = fn
}

// RunHealthChecks runs every registered check concurrently, each bounded by a
// five second timeout.
func RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	globalHealthChecker.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(globalHealthChecker.checks))
	for name, fn := range globalHealthChecker.checks {
		checks[name] = fn
	}
	globalHealthChecker.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheck, len(checks))
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn HealthCheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			check := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
			if err := fn(checkCtx); err != nil {
				check.Status = "unhealthy"
				check.Message = err.Error()
			}

			mu.Lock()
			results[name] = check
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	return results
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statsMu.RLock()
		names := make([]string, 0, len(statsProviders))
		for name := range statsProviders {
			names = append(names, name)
		}
		sort.Strings(names)
		components := make(map[string]interface{}, len(names))
		for _, name := range names {
			components[name] = statsProviders[name]()
		}
		statsMu.RUnlock()

		c.JSON(http.StatusOK, gin.H{
			"message": "OK",
			"data": gin.H{
				"application": GetMetrics(),
				"system":      GetSystemMetrics(),
				"components":  components,
				"timestamp":   time.Now().UTC(),
			},
		})
	}
}

// HealthHandler answers as long as the process serves requests.
func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "OK", "data": nil})
	}
}

// DatabaseHealthHandler runs the named check. It always answers 200 so
// callers can read the connection state.
func DatabaseHealthHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		globalHealthChecker.mu.RLock()
		check, ok := globalHealthChecker.checks[name]
		globalHealthChecker.mu.RUnlock()

		data := gin.H{"connected": false}
		if ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				data["error"] = err.Error()
			} else {
				data["connected"] = true
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "OK", "data": data})
	}
}

// ReadinessHandler runs every registered check and answers 503 when any of
// them fails.
func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks(c.Request.Context())

		if healthy(checks) {
			c.JSON(http.StatusOK, gin.H{
				"message": "OK",
				"data":    gin.H{"status": "ready", "checks": checks},
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"message": "Service unavailable",
			"data":    gin.H{"status": "not ready", "checks": checks},
		})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "OK",
			"data": gin.H{
				"status": "alive",
				"uptime": uptime().String(),
			},
		})
	}
}

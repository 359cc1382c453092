package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"easyflip-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const errorLogLimit = 50

var ErrNoRedis = errors.New("Redis is not configured")

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Service gathers liveness data for /health/json. Endpoints maps a
// dependency name to a URL that should answer any HTTP status.
type Service struct {
	Rdb       *redis.Client
	DB        DBPinger
	Endpoints map[string]string
	HTTP      *http.Client
	StartedAt time.Time
}

type Report struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	AllocMB       int    `json:"allocMb"`
	HeapInUseMB   int    `json:"heapInUseMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

func elapsedMs(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}

// Collect pings every dependency concurrently. Status is "ok" only when the
// database and Redis both answer; HTTP endpoints are informational.
func (s *Service) Collect(ctx context.Context) Report {
	rep := Report{Dependencies: make(map[string]DepStatus, 2+len(s.Endpoints))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	checkDep := func(name string, fn func() DepStatus) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dep := fn()
			mu.Lock()
			rep.Dependencies[name] = dep
			mu.Unlock()
		}()
	}

	checkDep("database", func() DepStatus {
		if s.DB == nil {
			return DepStatus{Status: "disconnected"}
		}
		start := time.Now()
		if err := s.DB.PingContext(ctx); err != nil {
			return DepStatus{Status: "error"}
		}
		return DepStatus{Status: "connected", PingMs: elapsedMs(start)}
	})
	checkDep("redis", func() DepStatus {
		if s.Rdb == nil {
			return DepStatus{Status: "disconnected"}
		}
		start := time.Now()
		if err := s.Rdb.Ping(ctx).Err(); err != nil {
			return DepStatus{Status: "error"}
		}
		return DepStatus{Status: "connected", PingMs: elapsedMs(start)}
	})
	for name, url := range s.Endpoints {
		url := url
		checkDep(name, func() DepStatus { return s.httpPing(ctx, url) })
	}
	wg.Wait()
	deps := rep.Dependencies

	rep.Traffic = s.traffic(ctx, deps["redis"].Status == "connected")
	rep.Runtime = s.runtimeInfo(ctx, deps["redis"].Status == "connected")

	if deps["database"].Status == "connected" && deps["redis"].Status == "connected" {
		rep.Status = "ok"
	} else {
		rep.Status = "issue"
	}
	return rep
}

func (s *Service) httpPing(ctx context.Context, url string) DepStatus {
	hc := s.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 3 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return DepStatus{Status: "unreachable"}
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return DepStatus{Status: "unreachable"}
	}
	resp.Body.Close()
	return DepStatus{Status: "reachable", PingMs: elapsedMs(start)}
}

func (s *Service) traffic(ctx context.Context, redisUp bool) TrafficInfo {
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	if !redisUp {
		return stats
	}
	vals, _ := s.Rdb.MGet(ctx, middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyLastReq).Result()
	str := func(i int) string {
		if i < len(vals) {
			if v, ok := vals[i].(string); ok {
				return v
			}
		}
		return ""
	}
	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	countSum, _ := strconv.Atoi(str(3))
	if countSum > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(countSum), 'f', 2, 64)
	}
	if last := str(4); last != "" {
		var lastReq map[string]interface{}
		if json.Unmarshal([]byte(last), &lastReq) == nil {
			stats.LastRequest = lastReq
		}
	}
	return stats
}

// runtimeInfo measures uptime from the shared start key so every instance
// reports the same window; it falls back to this process's start time.
func (s *Service) runtimeInfo(ctx context.Context, redisUp bool) RuntimeInfo {
	startMs := s.StartedAt.UnixMilli()
	if s.StartedAt.IsZero() {
		startMs = time.Now().UnixMilli()
	}
	if redisUp {
		v, err := s.Rdb.Get(ctx, middleware.KeyStartTime).Result()
		if t, perr := strconv.ParseInt(v, 10, 64); err == nil && perr == nil {
			startMs = t
		} else if err == redis.Nil {
			_ = s.Rdb.Set(ctx, middleware.KeyStartTime, startMs, 0).Err()
		}
	}
	uptime := (time.Now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeInfo{
		UptimeSeconds: uptime,
		AllocMB:       int(m.Alloc / 1024 / 1024),
		HeapInUseMB:   int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}
}

// Errors returns the newest entries of the 5xx log, newest first.
func (s *Service) Errors(ctx context.Context) ([]map[string]interface{}, error) {
	out := []map[string]interface{}{}
	if s.Rdb == nil {
		return out, nil
	}
	entries, err := s.Rdb.LRange(ctx, middleware.KeyErrorLog, 0, errorLogLimit-1).Result()
	if err != nil {
		return out, err
	}
	for _, e := range entries {
		var m map[string]interface{}
		if json.Unmarshal([]byte(e), &m) == nil && m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// Reset clears the request counters and restarts the uptime window.
func (s *Service) Reset(ctx context.Context) error {
	if s.Rdb == nil {
		return ErrNoRedis
	}
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := s.Rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return s.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(time.Now().UnixMilli(), 10), 0).Err()
}

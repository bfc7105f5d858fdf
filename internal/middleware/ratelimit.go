package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitAlgorithm 限流算法类型
type RateLimitAlgorithm string

const (
	// TokenBucket 令牌桶算法
	TokenBucket RateLimitAlgorithm = "token_bucket"
	// FixedWindow 固定窗口算法
	FixedWindow RateLimitAlgorithm = "fixed_window"
)

// RateLimitType 限流类型
type RateLimitType string

const (
	// RateLimitByIP 基于IP限流
	RateLimitByIP RateLimitType = "ip"
	// RateLimitByUser 基于用户限流，未登录时退回IP
	RateLimitByUser RateLimitType = "user"
	// RateLimitByEndpoint 基于接口限流
	RateLimitByEndpoint RateLimitType = "endpoint"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 规则名，区分同一客户端在不同规则下的计数
	Name  string
	Limit int
	// 窗口大小（秒）
	Window    int
	Algorithm RateLimitAlgorithm
	Type      RateLimitType
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error)
}

// RateLimitResult 限流结果
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	// 重置时间（Unix时间戳）
	ResetAt int64
	Limit   int
}

// 令牌桶: KEYS[1]=bucket ARGV=capacity, rate/s, now(ms)
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(bucket[1]) or capacity
local ts = tonumber(bucket[2]) or now
tokens = math.min(capacity, tokens + (now - ts) / 1000 * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], math.ceil(capacity / rate * 1000) + 1000)
return {allowed, math.floor(tokens)}
`)

// 固定窗口: KEYS[1]=window key ARGV=limit, ttl(s)
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
local limit = tonumber(ARGV[1])
if current > limit then
	return {0, 0}
end
return {1, limit - current}
`)

// RedisRateLimiter 基于Redis的限流器，多实例共享计数
type RedisRateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisRateLimiter 创建Redis限流器
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, now: time.Now}
}

// Allow 检查是否允许请求通过
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error) {
	now := r.now()
	if config.Algorithm == FixedWindow {
		window := now.Unix() / int64(config.Window)
		windowKey := fmt.Sprintf("ratelimit:fixed:%s:%d", key, window)
		values, err := fixedWindowScript.Run(ctx, r.client, []string{windowKey}, config.Limit, config.Window+1).Int64Slice()
		if err != nil {
			return nil, err
		}
		return &RateLimitResult{
			Allowed:   values[0] == 1,
			Remaining: int(values[1]),
			ResetAt:   (window + 1) * int64(config.Window),
			Limit:     config.Limit,
		}, nil
	}

	ratePerSecond := float64(config.Limit) / float64(config.Window)
	bucketKey := "ratelimit:token:" + key
	values, err := tokenBucketScript.Run(ctx, r.client, []string{bucketKey}, config.Limit, ratePerSecond, now.UnixMilli()).Int64Slice()
	if err != nil {
		return nil, err
	}
	return &RateLimitResult{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetAt:   now.Unix() + int64(config.Window),
		Limit:     config.Limit,
	}, nil
}

// 本地限流器条目的空闲回收
const (
	localIdleTTL       = 3 * time.Minute
	localSweepInterval = time.Minute
)

type localClient struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// LocalRateLimiter 进程内令牌桶，未配置Redis时使用
type LocalRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*localClient
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalRateLimiter 创建本地限流器
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{clients: make(map[string]*localClient), now: time.Now}
}

// Allow 检查是否允许请求通过。FixedWindow在本地按令牌桶近似处理
func (l *LocalRateLimiter) Allow(ctx context.Context, key string, config *RateLimitConfig) (*RateLimitResult, error) {
	window := time.Duration(config.Window) * time.Second
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= localSweepInterval {
		l.sweep(now)
	}
	client, ok := l.clients[key]
	if !ok {
		client = &localClient{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(config.Limit)), config.Limit),
			window:  window,
		}
		l.clients[key] = client
	}
	client.lastSeen = now
	allowed := client.limiter.AllowN(now, 1)
	remaining := int(client.limiter.TokensAt(now))
	l.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window).Unix(),
		Limit:     config.Limit,
	}, nil
}

// sweep 删除空闲条目，调用方持有锁。空闲超过一个窗口的令牌桶已经回满，删除后重建等价
func (l *LocalRateLimiter) sweep(now time.Time) {
	for key, client := range l.clients {
		idle := now.Sub(client.lastSeen)
		if idle >= localIdleTTL && idle >= client.window {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// RateLimitMiddleware 单条规则的限流中间件，挂在具体路由上
type RateLimitMiddleware struct {
	limiter RateLimiter
	config  *RateLimitConfig
}

// NewRateLimitMiddleware 创建限流中间件
func NewRateLimitMiddleware(limiter RateLimiter, config *RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, config: config}
}

// Middleware 返回Gin中间件函数
func (m *RateLimitMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforce(c, m.limiter, m.config) {
			c.Next()
		}
	}
}

// RateLimitGroup 按路径前缀选择规则的全局限流
type RateLimitGroup struct {
	limiter       RateLimiter
	defaultConfig *RateLimitConfig
	prefixes      []string
	configs       map[string]*RateLimitConfig
}

// NewRateLimitGroup 创建限流组
func NewRateLimitGroup(limiter RateLimiter, defaultConfig *RateLimitConfig) *RateLimitGroup {
	return &RateLimitGroup{
		limiter:       limiter,
		defaultConfig: defaultConfig,
		configs:       make(map[string]*RateLimitConfig),
	}
}

// AddSpecificConfig 添加特定路径前缀配置，先添加的优先
func (g *RateLimitGroup) AddSpecificConfig(prefix string, config *RateLimitConfig) {
	if _, exists := g.configs[prefix]; !exists {
		g.prefixes = append(g.prefixes, prefix)
	}
	g.configs[prefix] = config
}

func (g *RateLimitGroup) configFor(path string) *RateLimitConfig {
	for _, prefix := range g.prefixes {
		if strings.HasPrefix(path, prefix) {
			return g.configs[prefix]
		}
	}
	return g.defaultConfig
}

// Middleware 返回Gin中间件函数。没有默认规则时，未匹配的路径直接放行
func (g *RateLimitGroup) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		config := g.configFor(c.Request.URL.Path)
		if config == nil || enforce(c, g.limiter, config) {
			c.Next()
		}
	}
}

// enforce 写入限流响应头，超限时返回429并中断
func enforce(c *gin.Context, limiter RateLimiter, config *RateLimitConfig) bool {
	result, err := limiter.Allow(c.Request.Context(), rateLimitKey(c, config), config)
	if err != nil {
		// 限流后端故障时放行
		log.Printf("[RateLimit] limiter unavailable, letting %s %s through: %v", c.Request.Method, c.Request.URL.Path, err)
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

	if !result.Allowed {
		retryAfter := result.ResetAt - time.Now().Unix()
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "Too many requests"})
		return false
	}
	return true
}

func rateLimitKey(c *gin.Context, config *RateLimitConfig) string {
	switch config.Type {
	case RateLimitByUser:
		if userID, exists := c.Get("user_id"); exists {
			return fmt.Sprintf("%s:user:%v", config.Name, userID)
		}
		return config.Name + ":ip:" + c.ClientIP()
	case RateLimitByEndpoint:
		return fmt.Sprintf("%s:endpoint:%s:%s", config.Name, c.Request.Method, c.FullPath())
	default:
		return config.Name + ":ip:" + c.ClientIP()
	}
}

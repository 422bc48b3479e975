package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog"

    "github.com/iliyamo/donor-registry/internal/config"
)

// Cache groups. Writes invalidate whole groups.
const (
    CacheGroupDonors  = "donors"
    CacheGroupContent = "content"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        switch {
        case cw.limit <= 0 || int64(len(b)) <= remain:
            cw.buf.Write(b)
        case remain > 0:
            cw.buf.Write(b[:remain])
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// Cache is the Redis response cache for public reads.  A nil Redis client
// or a disabled config turns every method into a pass-through.
type Cache struct {
    cfg     config.CacheConfig
    rdb     *redis.Client
    metrics *Metrics
    log     zerolog.Logger
}

func NewCache(cfg config.CacheConfig, rdb *redis.Client, m *Metrics, log zerolog.Logger) *Cache {
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    return &Cache{cfg: cfg, rdb: rdb, metrics: m, log: log}
}

func (x *Cache) enabled() bool { return x != nil && x.cfg.Enabled && x.rdb != nil }

// key is prefix:group:sha1(route, query).
func (x *Cache) key(group string, c echo.Context) string {
    r := c.Request()
    var tail string
    switch strings.ToLower(x.cfg.KeyStrategy) {
    case "full_url":
        tail = r.Method + " " + r.URL.String()
    default: // "route_query": path params are part of the URL path
        tail = r.Method + " " + r.URL.Path + "?" + r.URL.Query().Encode()
    }
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%s:%x", x.cfg.Prefix, group, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    hdr := make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, hdr, bs[8+hlen:], true
}

// Middleware caches successful responses of the configured methods under
// group.  Requests carrying credentials are never cached.
func (x *Cache) Middleware(group string) echo.MiddlewareFunc {
    if !x.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(x.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !x.cfg.Methods[strings.ToUpper(req.Method)] || req.Header.Get("Authorization") != "" {
                return next(c)
            }
            ctx := req.Context()
            key := x.key(group, c)

            if bs, err := x.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, requestIDHeader) {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    x.metrics.recordCache(group, "hit")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            x.metrics.recordCache(group, "miss")
            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                if err := x.rdb.SetEx(context.WithoutCancel(ctx), key, payload, x.cfg.TTL).Err(); err != nil {
                    x.log.Warn().Err(err).Str("group", group).Msg("cache store failed")
                }
            }
            return nil
        }
    }
}

// Invalidate drops every cached response of the given groups.  Failures
// are logged; stale entries then expire with their TTL.
func (x *Cache) Invalidate(ctx context.Context, groups ...string) {
    if !x.enabled() {
        return
    }
    for _, g := range groups {
        pattern := fmt.Sprintf("%s:%s:*", x.cfg.Prefix, g)
        iter := x.rdb.Scan(ctx, 0, pattern, 200).Iterator()
        var keys []string
        for iter.Next(ctx) {
            keys = append(keys, iter.Val())
        }
        if err := iter.Err(); err != nil {
            x.log.Warn().Err(err).Str("group", g).Msg("cache scan failed")
            continue
        }
        if len(keys) == 0 {
            continue
        }
        if err := x.rdb.Del(ctx, keys...).Err(); err != nil {
            x.log.Warn().Err(err).Str("group", g).Msg("cache invalidation failed")
            continue
        }
        x.log.Debug().Str("group", g).Int("keys", len(keys)).Msg("cache invalidated")
    }
}

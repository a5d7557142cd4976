package tracking

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	VisitorIDHeader = "X-Visitor-ID"
	VisitorCookie   = "ls_vid"

	fallbackIP = "127.0.0.1"
)

// RequestInfo is the part of an inbound redirect that tracking needs. It is
// captured before the response is written so async tracking never touches
// the *http.Request.
type RequestInfo struct {
	IP         string
	UserAgent  string
	Referrer   string
	VisitorID  string
	ReceivedAt time.Time
}

func RequestInfoFrom(r *http.Request, now time.Time) RequestInfo {
	return RequestInfo{
		IP:         ClientIP(r),
		UserAgent:  r.UserAgent(),
		Referrer:   r.Referer(),
		VisitorID:  VisitorID(r),
		ReceivedAt: now,
	}
}

// ClientIP picks the client address in order: first X-Forwarded-For hop,
// X-Real-IP, CF-Connecting-IP, then the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.TrimPrefix(addr, "::ffff:")
	if addr == "" {
		return fallbackIP
	}
	return addr
}

// VisitorID returns the caller-supplied visitor identifier, header first.
func VisitorID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(VisitorIDHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(VisitorCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// VisitorHash is the stable key used for unique-visitor detection: the
// explicit visitor id when present, otherwise IP and user agent.
func VisitorHash(req RequestInfo) string {
	var src string
	if req.VisitorID != "" {
		src = "vid:" + req.VisitorID
	} else {
		src = "ipua:" + req.IP + "|" + req.UserAgent
	}
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"roombook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"

	permReadAvailability  = "read:availability"
	permWriteHolds        = "write:holds"
	permWriteReservations = "write:reservations"
	permReadReservations  = "read:reservations"
	permReadResources     = "read:resources"
	permWriteResources    = "write:resources"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

// keyAuth identifies calling services by API key. It is shared by the HTTP
// middleware and the gRPC interceptor.
type keyAuth struct {
	cfg         config.APIConfig
	clients     map[string]config.APIClientKey
	limiter     *rateLimiter
	keyHeader   string
	extraHeader string
}

func newKeyAuth(cfg config.APIConfig) *keyAuth {
	clients := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		clients[k.Key] = k
	}
	keyHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if keyHeader == "" {
		keyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}
	return &keyAuth{
		cfg:         cfg,
		clients:     clients,
		limiter:     newRateLimiter(cfg.RateLimit),
		keyHeader:   keyHeader,
		extraHeader: extraHeader,
	}
}

// authenticate checks the key pair and the permission required by the call.
// An empty permission list on a key allows everything.
func (a *keyAuth) authenticate(apiKey, extra, required string) error {
	if apiKey == "" || extra == "" {
		return errMissingKey
	}
	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

// Wrap is the HTTP middleware.
func (a *keyAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := strings.TrimSpace(r.Header.Get(a.keyHeader))

		if a.cfg.Auth.Enabled {
			extra := strings.TrimSpace(r.Header.Get(a.extraHeader))
			if err := a.authenticate(apiKey, extra, requiredPermissionHTTP(r)); err != nil {
				code := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					code = http.StatusForbidden
				}
				writeJSON(w, code, errorBody{Error: err.Error(), Code: "unauthorized"})
				return
			}
		}

		key := apiKey
		if key == "" {
			key = remoteHost(r.RemoteAddr)
		}
		if !a.limiter.allow(key) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errRateLimited.Error(), Code: "rate_limited"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/availability/hold"), strings.HasPrefix(path, "/api/v1/payments"):
		return permWriteHolds
	case strings.HasPrefix(path, "/api/v1/availability"):
		return permReadAvailability
	case path == "/api/v1/reservations/confirm":
		return permWriteReservations
	case strings.HasPrefix(path, "/api/v1/reservations"), strings.HasPrefix(path, "/api/v1/attempts"):
		return permReadReservations
	case strings.HasPrefix(path, "/api/v1/resources"):
		if r.Method == http.MethodGet {
			return permReadResources
		}
		return permWriteResources
	default:
		return ""
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// AuthInterceptor applies the same API key checks to gRPC calls.
type AuthInterceptor struct {
	auth *keyAuth
}

func NewAuthInterceptor(cfg config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{auth: newKeyAuth(cfg)}
}

func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		// Health probes are open, like /healthz.
		if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		apiKey := first(md.Get(i.auth.keyHeader))

		if i.auth.cfg.Auth.Enabled {
			if md == nil {
				return nil, status.Error(codes.Unauthenticated, "missing metadata")
			}
			extra := first(md.Get(i.auth.extraHeader))
			if err := i.auth.authenticate(apiKey, extra, requiredPermission(info.FullMethod)); err != nil {
				if errors.Is(err, errPermissionDenied) {
					return nil, status.Error(codes.PermissionDenied, err.Error())
				}
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		key := apiKey
		if key == "" {
			key = clientKeyUnknown
			if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
				key = p.Addr.String()
			}
		}
		if !i.auth.limiter.allow(key) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}

		return handler(ctx, req)
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodQuote:
		return permReadAvailability
	case methodCheckAndHold:
		return permWriteHolds
	case methodConfirm:
		return permWriteReservations
	case methodListResources:
		return permReadResources
	default:
		return ""
	}
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

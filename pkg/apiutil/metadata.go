package apiutil

import (
	"strings"

	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/gofiber/fiber/v2"
)

// GeolocationHeader is set by the edge proxy to the caller's ISO country.
const GeolocationHeader = "X-Geolocation"

// RequestMetadata extracts the caller's address and location for the
// transaction monitor. Behind a proxy the first X-Forwarded-For hop wins.
func RequestMetadata(c *fiber.Ctx) ledger.Metadata {
	return ledger.Metadata{
		IPAddress:   ClientIP(c),
		Geolocation: strings.ToUpper(strings.TrimSpace(c.Get(GeolocationHeader))),
	}
}

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the peer
// address.
func ClientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if xr := c.Get("X-Real-IP"); xr != "" {
		return xr
	}
	return c.IP()
}

package payment

import (
	"log/slog"
	"net/http"

	"github.com/amirasaad/usdledger/pkg/apiutil"
	"github.com/amirasaad/usdledger/pkg/gateway"
	"github.com/amirasaad/usdledger/pkg/mapper"
	"github.com/amirasaad/usdledger/pkg/service/ledger"
	"github.com/gofiber/fiber/v2"
)

// Webhook authenticates a gateway callback and settles the transaction it
// names. Gateways with their own webhook format parse it themselves; the
// rest send the generic body signed with X-Signature. name fixes the gateway;
// empty takes it from the :gateway route parameter.
func Webhook(
	svc *ledger.Service,
	registry *gateway.Registry,
	secret string,
	name string,
	logger *slog.Logger,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gw := name
		if gw == "" {
			gw = c.Params("gateway")
		}
		g, err := registry.Get(gw)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Unknown gateway", err, fiber.StatusNotFound)
		}
		payload := c.Body()
		if len(payload) == 0 {
			return apiutil.ProblemDetailsJSON(c, "Empty request body", nil, "webhook body is empty", fiber.StatusBadRequest)
		}

		var cb *gateway.Callback
		if parser, ok := gateway.Capability[gateway.CallbackParser](g); ok {
			cb, err = parser.ParseCallback(payload, http.Header(c.GetReqHeaders()))
		} else {
			cb, err = gateway.ParseSignedCallback(g.Name(), secret, payload, c.Get(gateway.SignatureHeader))
		}
		if err != nil {
			logger.Warn("webhook rejected", "gateway", gw, "error", err)
			return apiutil.ProblemDetailsJSON(c, "Invalid webhook", err)
		}
		if cb == nil {
			return apiutil.SuccessResponseJSON(c, fiber.StatusOK, "Event ignored", nil)
		}

		tx, err := svc.HandleCallback(c.UserContext(), *cb)
		if err != nil {
			return apiutil.ProblemDetailsJSON(c, "Callback not applied", err)
		}
		return apiutil.SuccessResponseJSON(c, fiber.StatusOK, "Callback applied", mapper.ToTransactionRead(tx))
	}
}

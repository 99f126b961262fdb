package simulator

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// Transport serves acquirer requests from the simulator handler without a
// network hop, so the HTTP client's timeout, retry and breaker stay in the
// path. Every POST is treated as a payment request regardless of its URL.
type Transport struct {
	router *gin.Engine
}

func NewTransport(h *Handler) *Transport {
	router := gin.New()
	router.POST("/*path", h.ProcessPayment)
	return &Transport{router: router}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	t.router.ServeHTTP(rec, req)
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	res := rec.Result()
	res.Request = req
	return res, nil
}

var _ http.RoundTripper = (*Transport)(nil)

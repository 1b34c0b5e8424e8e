package handler

import (
	"net/http"

	"github.com/kehindemorol/vestra/internal/ledger"

	"github.com/tomasen/realip"
)

// requestMeta captures the requester identity recorded on transaction and
// audit rows.
func requestMeta(r *http.Request) ledger.RequestMeta {
	return ledger.RequestMeta{
		IP:        realip.FromRequest(r),
		UserAgent: r.UserAgent(),
	}
}

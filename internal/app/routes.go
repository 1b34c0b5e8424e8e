package app

import (
	"net/http"

	"github.com/kehindemorol/vestra/internal/handler"
	"github.com/kehindemorol/vestra/internal/middleware"
)

func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()

	middlewareRepo := middleware.New(app.errorHandler, app.Logger, app.DB.Admin(), &app.Config)

	healthHandler := handler.NewHealthCheckHandler(app.errorHandler)
	authHandler := handler.NewAuthHandler(app.DB.Admin(), app.Ledger, app.errorHandler, &app.Config)
	balanceHandler := handler.NewBalanceHandler(app.Ledger, app.DB.TransactionLog(), app.errorHandler)
	withdrawalHandler := handler.NewWithdrawalHandler(app.Scheduler, app.errorHandler)
	adminHandler := handler.NewAdminHandler(app.Scheduler, app.errorHandler)

	mux.HandleFunc("GET /status", healthHandler.HandleHealthCheck)

	mux.HandleFunc("POST /auth/admin/login", authHandler.HandleAdminLogin)

	mux.HandleFunc("GET /balances/{user_id}", balanceHandler.HandleBalance)
	mux.HandleFunc("GET /balances/{user_id}/transactions", balanceHandler.HandleTransactionHistory)

	mux.HandleFunc("POST /withdrawals", withdrawalHandler.HandleSubmitWithdrawal)
	mux.HandleFunc("POST /withdrawals/{id}/cancel", withdrawalHandler.HandleCancelWithdrawal)

	// processing endpoints require an authenticated active admin
	mux.Handle("GET /balances/{user_id}/integrity",
		middlewareRepo.RequireAuthenticatedAdmin(http.HandlerFunc(balanceHandler.HandleIntegrity)))
	mux.Handle("GET /admin/withdrawals/pending",
		middlewareRepo.RequireAuthenticatedAdmin(http.HandlerFunc(adminHandler.HandlePendingWithdrawals)))
	mux.Handle("POST /admin/withdrawals/{id}/process",
		middlewareRepo.RequireAuthenticatedAdmin(http.HandlerFunc(adminHandler.HandleProcessWithdrawal)))
	mux.Handle("PUT /admin/business-hours/{weekday}",
		middlewareRepo.RequireAuthenticatedAdmin(http.HandlerFunc(adminHandler.HandleUpdateBusinessHours)))

	return middlewareRepo.LogAccess(middlewareRepo.RecoverPanic(middlewareRepo.Authenticate(mux)))
}

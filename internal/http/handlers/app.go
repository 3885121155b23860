package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"tunesmith/internal/entitlement"
	"tunesmith/internal/infra"
	"tunesmith/internal/payment"
	"tunesmith/internal/queue"
	"tunesmith/internal/store"
)

// App is the handler container. Every handler is a method on it so the
// router wires one object.
type App struct {
	SQL        infra.SQLExecutor
	DB         infra.TxExecutor
	Cfg        *infra.Config
	Logger     zerolog.Logger
	Principals *store.Principals
	Orders     *store.Orders
	Tasks      *store.Tasks
	Tracks     *store.Tracks
	Catalog    *store.Catalog
	Ledger     *entitlement.Ledger
	Queue      *queue.Queue
	Reconciler *payment.Reconciler
	IDNode     *snowflake.Node
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

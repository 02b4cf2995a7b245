package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/todo"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TodosStore interface {
	Create(ctx context.Context, ownerID string, req todo.CreateTodoRequest) (todo.Todo, error)
	ListByOwner(ctx context.Context, ownerID string) ([]todo.Todo, error)
	SetCompleted(ctx context.Context, id, ownerID string, completed bool) error
	Edit(ctx context.Context, id, ownerID string, req todo.EditTodoRequest) (todo.Todo, error)
	Delete(ctx context.Context, id, ownerID string) error
}

type TodosHandler struct {
	repo TodosStore
}

func NewTodosHandler(repo TodosStore) *TodosHandler {
	return &TodosHandler{repo: repo}
}

// Every operation below resolves the acting identity from the verified
// claim and hands the owner id to the repo, which scopes the statement
// with it. A todo someone else owns comes back as not found; the handler
// never learns whether the row was absent or merely not theirs.

func (h *TodosHandler) ListTodos(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.repo.ListByOwner(cctx, claims.UserID)

	if err != nil {
		RespondInternal(ctx, "Could not list todos")
		return
	}

	ctx.JSON(http.StatusOK, items)
}

func (h *TodosHandler) CreateTodo(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req todo.CreateTodoRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, claims.UserID, req)

	if err != nil {
		RespondInternal(ctx, "Could not create todo")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"todo":    created,
	})
}

func (h *TodosHandler) UpdateStatus(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	var req todo.StatusTodoRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.SetCompleted(cctx, id, claims.UserID, *req.Completed)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}

		RespondInternal(ctx, "Could not update todo")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TodosHandler) EditTodo(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	var req todo.EditTodoRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	_, err := h.repo.Edit(cctx, id, claims.UserID, req)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}

		RespondInternal(ctx, "Could not edit todo")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TodosHandler) DeleteTodo(ctx *gin.Context) {
	claims, ok := middlewares.ClaimsFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	err := h.repo.Delete(cctx, id, claims.UserID)

	if err != nil {
		if errors.Is(err, todo.ErrNotFound) {
			RespondNotFound(ctx, "Todo not found")
			return
		}

		RespondInternal(ctx, "Could not delete todo")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

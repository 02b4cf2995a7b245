package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	appcache "github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/todo"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/jobs"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

type AdminUsersStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	SetApproved(ctx context.Context, id string, approved bool) error
}

type AdminTodosStore interface {
	ListAllWithOwners(ctx context.Context) ([]todo.AdminTodo, error)
}

const adminTodosCacheKey = "admin:todos"

type AdminHandler struct {
	users     AdminUsersStore
	todos     AdminTodosStore
	queue     JobEnqueuer
	approvals *appcache.ApprovalCache
	listCache *appcache.Cache
}

func NewAdminHandler(users AdminUsersStore, todos AdminTodosStore, queue JobEnqueuer, approvals *appcache.ApprovalCache, listCache *appcache.Cache) *AdminHandler {
	return &AdminHandler{
		users:     users,
		todos:     todos,
		queue:     queue,
		approvals: approvals,
		listCache: listCache,
	}
}

type UserStatusRequest struct {
	UserID string `json:"userId" binding:"required"`
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	users, err := h.users.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, users)
}

// ListTodos is the read-only cross-owner view with the owner email joined
// in. The dashboard polls it, so the result sits in a short TTL cache.
func (h *AdminHandler) ListTodos(ctx *gin.Context) {
	if h.listCache != nil {
		if v, ok := h.listCache.Get(adminTodosCacheKey); ok {
			if items, ok := v.([]todo.AdminTodo); ok {
				ctx.JSON(http.StatusOK, items)
				return
			}
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, err := h.todos.ListAllWithOwners(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list todos")
		return
	}

	if h.listCache != nil {
		h.listCache.Set(adminTodosCacheKey, items)
	}

	ctx.JSON(http.StatusOK, items)
}

// UpdateUserStatus is the admin decision. Approve and reject both land on
// the same boolean, so a rejected user goes back to pending and can be
// approved later. Tokens already issued to the target keep their old flag
// until they expire or refresh.
func (h *AdminHandler) UpdateUserStatus(ctx *gin.Context) {
	var req UserStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	decision := user.Decision(req.Status)

	if !decision.IsValid() {
		RespondBadRequest(ctx, "Invalid input", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	target, err := h.users.GetByID(cctx, req.UserID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondBadRequest(ctx, "Invalid input", nil)
			return
		}

		RespondInternal(ctx, "Could not update user status")
		return
	}

	err = h.users.SetApproved(cctx, target.ID, decision.Approved())

	if err != nil {
		RespondInternal(ctx, "Could not update user status")
		return
	}

	// drop the stale poll answer right away
	h.approvals.Invalidate(cctx, target.Email)

	h.enqueueApprovalDecision(cctx, ctx, target, decision)

	ctx.JSON(http.StatusOK, gin.H{"message": "User status updated"})
}

func (h *AdminHandler) enqueueApprovalDecision(ctx context.Context, ginCtx *gin.Context, target user.User, decision user.Decision) {
	if h.queue == nil {
		return
	}

	decidedBy := ""

	if claims, ok := middlewares.ClaimsFromContext(ginCtx); ok {
		decidedBy = claims.UserID
	}

	payload, err := jobs.EncodePayload(jobs.JobSendApprovalDecision, jobs.ApprovalDecisionPayload{
		UserID:    target.ID,
		Email:     target.Email,
		Decision:  string(decision),
		DecidedBy: decidedBy,
	})

	if err != nil {
		return
	}

	j, err := jobs.NewJob(jobs.JobSendApprovalDecision, payload, time.Time{})

	if err != nil {
		return
	}

	// delivery is a side effect, the decision already stuck
	_ = h.queue.Enqueue(ctx, j)
}

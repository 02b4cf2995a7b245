package todo

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("todo not found")

type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AdminTodo is the admin read model: a todo joined with its owner's email.
type AdminTodo struct {
	Todo
	UserEmail string `json:"userEmail"`
}

type CreateTodoRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type EditTodoRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type StatusTodoRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

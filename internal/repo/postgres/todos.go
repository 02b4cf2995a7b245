package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/todo"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TodosRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTodosRepo(pool *pgxpool.Pool, prom *observability.Prom) *TodosRepo {
	return &TodosRepo{pool: pool, prom: prom}
}

func (r *TodosRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TodosRepo) Create(ctx context.Context, ownerID string, req todo.CreateTodoRequest) (todo.Todo, error) {
	now := time.Now().UTC()

	t := todo.Todo{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.observe("todos.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO todos (id, title, description, completed, user_id, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			t.ID, t.Title, t.Description, t.Completed, t.UserID, t.CreatedAt, t.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return todo.Todo{}, err
	}

	return t, nil
}

func (r *TodosRepo) ListByOwner(ctx context.Context, ownerID string) ([]todo.Todo, error) {
	output := make([]todo.Todo, 0)

	err := r.observe("todos.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT id, title, description, completed, user_id, created_at, updated_at
			FROM todos
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC`,
			ownerID,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var t todo.Todo

			err = rows.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)

			if err != nil {
				return err
			}

			output = append(output, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

// ListAllWithOwners is the admin read path: every todo joined with its
// owner's email. Read only, the admin surface has no write statements.
func (r *TodosRepo) ListAllWithOwners(ctx context.Context) ([]todo.AdminTodo, error) {
	output := make([]todo.AdminTodo, 0)

	err := r.observe("todos.list_all_with_owners", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT t.id, t.title, t.description, t.completed, t.user_id, t.created_at, t.updated_at, u.email
			FROM todos t
			LEFT JOIN users u ON u.id = t.user_id
			ORDER BY t.created_at DESC, t.id DESC`,
		)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var at todo.AdminTodo

			err = rows.Scan(&at.ID, &at.Title, &at.Description, &at.Completed, &at.UserID, &at.CreatedAt, &at.UpdatedAt, &at.UserEmail)

			if err != nil {
				return err
			}

			output = append(output, at)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return output, nil
}

// Every mutation below carries the owner id in the WHERE clause. A todo that
// exists but belongs to someone else affects zero rows, which comes back as
// ErrNotFound; the store never says which of the two it was.

func (r *TodosRepo) SetCompleted(ctx context.Context, id, ownerID string, completed bool) error {
	var tag pgconn.CommandTag

	err := r.observe("todos.set_completed", func() error {
		var err error

		tag, err = r.pool.Exec(ctx,
			`UPDATE todos
			SET completed = $3, updated_at = NOW()
			WHERE id = $1 AND user_id = $2`,
			id, ownerID, completed,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return todo.ErrNotFound
	}

	return nil
}

func (r *TodosRepo) Edit(ctx context.Context, id, ownerID string, req todo.EditTodoRequest) (todo.Todo, error) {
	var t todo.Todo

	err := r.observe("todos.edit", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE todos
			SET title = $3, description = $4, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, title, description, completed, user_id, created_at, updated_at`,
			id, ownerID, req.Title, req.Description,
		).Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&t.Completed,
			&t.UserID,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return todo.Todo{}, todo.ErrNotFound
		}

		return todo.Todo{}, err
	}

	return t, nil
}

func (r *TodosRepo) Delete(ctx context.Context, id, ownerID string) error {
	var tag pgconn.CommandTag

	err := r.observe("todos.delete", func() error {
		var err error

		tag, err = r.pool.Exec(ctx,
			`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return todo.ErrNotFound
	}

	return nil
}

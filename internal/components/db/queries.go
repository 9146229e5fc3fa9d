package db

import (
	"context"
)

type Slot struct {
	Key       string
	Value     string
	UpdatedAt int64
}

const getSlot = `-- name: GetSlot :one
select key, value, updatedAt from Slot
where key = ?
`

func (q *Queries) GetSlot(ctx context.Context, key string) (Slot, error) {
	row := q.db.QueryRowContext(ctx, getSlot, key)
	var i Slot
	err := row.Scan(&i.Key, &i.Value, &i.UpdatedAt)
	return i, err
}

const putSlot = `-- name: PutSlot :exec
insert into Slot(key, value, updatedAt) values (?, ?, ?)
on conflict (key) do update set value = excluded.value, updatedAt = excluded.updatedAt
`

type PutSlotParams struct {
	Key       string
	Value     string
	UpdatedAt int64
}

func (q *Queries) PutSlot(ctx context.Context, arg PutSlotParams) error {
	_, err := q.db.ExecContext(ctx, putSlot, arg.Key, arg.Value, arg.UpdatedAt)
	return err
}

const deleteSlot = `-- name: DeleteSlot :exec
delete from Slot where key = ?
`

func (q *Queries) DeleteSlot(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteSlot, key)
	return err
}

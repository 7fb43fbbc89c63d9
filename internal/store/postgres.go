package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	influencedomain "github.com/nazeru/crm-orders-go/internal/influence/domain"
	orderdomain "github.com/nazeru/crm-orders-go/internal/order/domain"
)

// Postgres is the pgx-backed record store. Writes use an optimistic
// version predicate so concurrent mutations of one entity surface as
// ErrConflict instead of silently losing updates.
type Postgres struct {
	pool *pgxpool.Pool
}

const ordersSchema = `CREATE TABLE IF NOT EXISTS orders(
	cid TEXT PRIMARY KEY,
	customer_name TEXT NOT NULL,
	product_version TEXT NOT NULL,
	dev_scale INTEGER NOT NULL,
	purchased_lic_count INTEGER NOT NULL,
	total_amount TEXT NOT NULL,
	status INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	create_time TIMESTAMPTZ NOT NULL,
	pay_time TIMESTAMPTZ,
	update_time TIMESTAMPTZ,
	version BIGINT NOT NULL
)`

const influencesSchema = `CREATE TABLE IF NOT EXISTS influences(
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	event_time TIMESTAMPTZ NOT NULL,
	link TEXT NOT NULL DEFAULT '',
	remark TEXT NOT NULL DEFAULT '',
	image_urls TEXT[] NOT NULL DEFAULT '{}',
	create_time TIMESTAMPTZ NOT NULL,
	update_time TIMESTAMPTZ,
	version BIGINT NOT NULL
)`

func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	for _, schema := range []string{ordersSchema, influencesSchema} {
		if _, err := pool.Exec(ctx, schema); err != nil {
			return nil, fmt.Errorf("init tables: %w", err)
		}
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

const orderColumns = `cid, customer_name, product_version, dev_scale, purchased_lic_count,
	total_amount, status, description, create_time, pay_time, update_time, version`

func (p *Postgres) GetOrder(ctx context.Context, cid string) (orderdomain.Order, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE cid=$1`, cid)
	return scanOrder(row)
}

func (p *Postgres) ListOrders(ctx context.Context, customerName string) ([]orderdomain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if customerName != "" {
		query += ` WHERE customer_name=$1`
		args = append(args, customerName)
	}
	query += ` ORDER BY create_time DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orderdomain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) PutOrder(ctx context.Context, o orderdomain.Order) (orderdomain.Order, error) {
	if o.Version == 0 {
		t := time.Now().UTC()
		_, err := p.pool.Exec(ctx,
			`INSERT INTO orders(cid, customer_name, product_version, dev_scale, purchased_lic_count,
				total_amount, status, description, create_time, pay_time, update_time, version)
			 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)`,
			o.Cid, o.CustomerName, o.ProductVersion, o.DevScale, o.PurchasedLicCount,
			o.TotalAmount.StringFixed(2), o.Status, o.Description, o.CreateTime, o.PayTime, t)
		if err != nil {
			if isUniqueViolation(err) {
				return orderdomain.Order{}, ErrConflict
			}
			return orderdomain.Order{}, err
		}
		o.UpdateTime = &t
		o.Version = 1
		return o, nil
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE orders SET customer_name=$2, product_version=$3, dev_scale=$4,
			purchased_lic_count=$5, total_amount=$6, status=$7, description=$8,
			pay_time=$9, update_time=now(), version=version+1
		 WHERE cid=$1 AND version=$10`,
		o.Cid, o.CustomerName, o.ProductVersion, o.DevScale, o.PurchasedLicCount,
		o.TotalAmount.StringFixed(2), o.Status, o.Description, o.PayTime, o.Version)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or the version is stale.
		if _, err := p.GetOrder(ctx, o.Cid); errors.Is(err, ErrNotFound) {
			return orderdomain.Order{}, ErrNotFound
		}
		return orderdomain.Order{}, ErrConflict
	}
	return p.GetOrder(ctx, o.Cid)
}

func (p *Postgres) DeleteOrder(ctx context.Context, cid string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM orders WHERE cid=$1`, cid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const influenceColumns = `id, name, type, status, event_time, link, remark, image_urls,
	create_time, update_time, version`

func (p *Postgres) GetInfluence(ctx context.Context, id string) (influencedomain.Influence, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+influenceColumns+` FROM influences WHERE id=$1`, id)
	return scanInfluence(row)
}

func (p *Postgres) ListInfluences(ctx context.Context, activityType string) ([]influencedomain.Influence, error) {
	query := `SELECT ` + influenceColumns + ` FROM influences`
	args := []any{}
	if activityType != "" {
		query += ` WHERE type=$1`
		args = append(args, activityType)
	}
	query += ` ORDER BY event_time DESC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []influencedomain.Influence
	for rows.Next() {
		inf, err := scanInfluence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inf)
	}
	return out, rows.Err()
}

func (p *Postgres) PutInfluence(ctx context.Context, inf influencedomain.Influence) (influencedomain.Influence, error) {
	if inf.Version == 0 {
		t := time.Now().UTC()
		_, err := p.pool.Exec(ctx,
			`INSERT INTO influences(id, name, type, status, event_time, link, remark, image_urls,
				create_time, update_time, version)
			 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1)`,
			inf.ID, inf.Name, inf.Type, inf.Status, inf.EventTime, inf.Link, inf.Remark,
			inf.ImageURLs, inf.CreateTime, t)
		if err != nil {
			if isUniqueViolation(err) {
				return influencedomain.Influence{}, ErrConflict
			}
			return influencedomain.Influence{}, err
		}
		inf.UpdateTime = &t
		inf.Version = 1
		return inf, nil
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE influences SET name=$2, type=$3, status=$4, event_time=$5, link=$6,
			remark=$7, image_urls=$8, update_time=now(), version=version+1
		 WHERE id=$1 AND version=$9`,
		inf.ID, inf.Name, inf.Type, inf.Status, inf.EventTime, inf.Link, inf.Remark,
		inf.ImageURLs, inf.Version)
	if err != nil {
		return influencedomain.Influence{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := p.GetInfluence(ctx, inf.ID); errors.Is(err, ErrNotFound) {
			return influencedomain.Influence{}, ErrNotFound
		}
		return influencedomain.Influence{}, ErrConflict
	}
	return p.GetInfluence(ctx, inf.ID)
}

func (p *Postgres) DeleteInfluence(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM influences WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (orderdomain.Order, error) {
	var o orderdomain.Order
	var amount string
	err := row.Scan(&o.Cid, &o.CustomerName, &o.ProductVersion, &o.DevScale, &o.PurchasedLicCount,
		&amount, &o.Status, &o.Description, &o.CreateTime, &o.PayTime, &o.UpdateTime, &o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orderdomain.Order{}, ErrNotFound
		}
		return orderdomain.Order{}, err
	}
	o.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return orderdomain.Order{}, fmt.Errorf("parse total_amount: %w", err)
	}
	return o, nil
}

func scanInfluence(row pgx.Row) (influencedomain.Influence, error) {
	var inf influencedomain.Influence
	err := row.Scan(&inf.ID, &inf.Name, &inf.Type, &inf.Status, &inf.EventTime, &inf.Link,
		&inf.Remark, &inf.ImageURLs, &inf.CreateTime, &inf.UpdateTime, &inf.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return influencedomain.Influence{}, ErrNotFound
		}
		return influencedomain.Influence{}, err
	}
	return inf, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

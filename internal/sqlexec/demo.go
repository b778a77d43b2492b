// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"fmt"
)

// DemoTable is the table created by GenerateDemo.
const DemoTable = "large_sales_data"

// demoBatch is how many rows one INSERT statement generates.
const demoBatch = 100_000

const demoInsert = `
WITH RECURSIVE seq(n) AS (SELECT ? UNION ALL SELECT n + 1 FROM seq WHERE n < ?)
INSERT INTO large_sales_data (id, customer_name, product_name, price, quantity, order_date, status, region, sales_rep_id, order_hash)
SELECT n,
       'Customer_' || (abs(random()) % 100000),
       'Product_' || (abs(random()) % 1000),
       round(10 + (abs(random()) % 100000) / 100.0, 2),
       1 + abs(random()) % 100,
       date('2020-01-01', '+' || (abs(random()) % 1460) || ' days'),
       CASE WHEN abs(random()) % 10 < 7 THEN 'Completed'
            WHEN abs(random()) % 10 < 9 THEN 'Pending'
            ELSE 'Cancelled' END,
       'Region_' || (abs(random()) % 50),
       1 + abs(random()) % 5,
       lower(hex(randomblob(16)))
FROM seq`

// GenerateDemo replaces large_sales_data with rows synthetic sales rows and
// indexes it. progress, if set, is called with the number of rows written
// after every batch.
func GenerateDemo(ctx context.Context, p *SQLitePort, rows int64, progress func(written int64)) error {
	if rows <= 0 {
		return fmt.Errorf("row count must be positive, got %d", rows)
	}
	stmts := []string{
		`DROP TABLE IF EXISTS large_sales_data`,
		`CREATE TABLE large_sales_data (
			id INTEGER PRIMARY KEY,
			customer_name TEXT NOT NULL,
			product_name TEXT NOT NULL,
			price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			order_date TEXT NOT NULL,
			status TEXT NOT NULL,
			region TEXT NOT NULL,
			sales_rep_id INTEGER NOT NULL,
			order_hash TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if err := p.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to create %s: %w", DemoTable, err)
		}
	}

	for start := int64(1); start <= rows; start += demoBatch {
		end := min(start+demoBatch-1, rows)
		if err := p.Exec(ctx, demoInsert, start, end); err != nil {
			return fmt.Errorf("failed to insert rows %d-%d: %w", start, end, err)
		}
		if progress != nil {
			progress(end)
		}
	}

	for _, s := range []string{
		`CREATE INDEX idx_sales_customer ON large_sales_data(customer_name)`,
		`CREATE INDEX idx_sales_date ON large_sales_data(order_date)`,
		`CREATE INDEX idx_sales_status ON large_sales_data(status)`,
	} {
		if err := p.Exec(ctx, s); err != nil {
			return fmt.Errorf("failed to index %s: %w", DemoTable, err)
		}
	}
	return nil
}
